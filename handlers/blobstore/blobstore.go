// Package blobstore is a reference Host effect handler backing
// BlobPut/BlobGet with S3, and an external-promise completion source
// backing CreateExternalPromise with SQS — the two concrete instances of
// the engine's "opaque to the VM" host boundary (spec.md §4.4 Host
// effect, §5 CreateExternalPromise).
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gofrs/uuid"

	"github.com/deepnoodle-ai/effectvm/coroutine"
	"github.com/deepnoodle-ai/effectvm/driver"
	"github.com/deepnoodle-ai/effectvm/handler"
	"github.com/deepnoodle-ai/effectvm/value"
)

const (
	nameBlobPut = "BlobPut"
	nameBlobGet = "BlobGet"
)

// Store wraps an S3 client bound to one bucket.
type Store struct {
	client *s3.Client
	bucket string
}

func New(client *s3.Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// PutRequest is the Object carried by a value.HostEffect{Name: "BlobPut"} effect.
type PutRequest struct {
	Key  string
	Data []byte
}

// GetRequest is the Object carried by a value.HostEffect{Name: "BlobGet"} effect.
type GetRequest struct {
	Key string
}

// Put builds the effect value a program yields to store data.
func Put(key string, data []byte) value.Value {
	return value.AsEffect(value.HostEffect{Name: nameBlobPut, Object: PutRequest{Key: key, Data: data}})
}

// Get builds the effect value a program yields to retrieve data.
func Get(key string) value.Value {
	return value.AsEffect(value.HostEffect{Name: nameBlobGet, Object: GetRequest{Key: key}})
}

// Handler builds the HostCallableHandler to install around a program.
func (s *Store) Handler() *handler.HostCallableHandler {
	return &handler.HostCallableHandler{
		Matches: func(e value.Effect) bool {
			h, ok := e.(value.HostEffect)
			return ok && (h.Name == nameBlobPut || h.Name == nameBlobGet)
		},
		Opaque: s,
	}
}

// Resolver builds the driver.HandlerResolver to pass to
// effectvm.WithHandlerResolver alongside Handler.
func (s *Store) Resolver() driver.HandlerResolver {
	return func(opaque any, effect value.Effect) (driver.HostFunc, bool) {
		store, ok := opaque.(*Store)
		if !ok || store != s {
			return nil, false
		}
		h, ok := effect.(value.HostEffect)
		if !ok {
			return nil, false
		}
		return func(ctx context.Context, _ []value.Value) (value.Value, error) {
			switch h.Name {
			case nameBlobPut:
				req := h.Object.(PutRequest)
				return store.put(ctx, req)
			case nameBlobGet:
				req := h.Object.(GetRequest)
				return store.get(ctx, req)
			default:
				return nil, fmt.Errorf("blobstore: unsupported host effect %q", h.Name)
			}
		}, true
	}
}

func (s *Store) put(ctx context.Context, req PutRequest) (value.Value, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(req.Key),
		Body:   bytes.NewReader(req.Data),
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: put %q: %w", req.Key, err)
	}
	tag, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("blobstore: tagging put result: %w", err)
	}
	return &value.Host{Tag: tag.String(), Object: req.Key}, nil
}

func (s *Store) get(ctx context.Context, req GetRequest) (value.Value, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(req.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: get %q: %w", req.Key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("blobstore: reading %q: %w", req.Key, err)
	}
	tag, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("blobstore: tagging get result: %w", err)
	}
	return &value.Host{Tag: tag.String(), Object: data}, nil
}

// ExternalPromiseCompleter long-polls an SQS queue until a message
// arrives, completes promise (created via value.CreateExternalPromise)
// with that message's body, deletes the message and returns; a receive
// error fails the promise instead. It is meant to be run as a Spawn'd
// task: the task program itself issues the CompletePromise/FailPromise
// effect, keeping promise resolution on the dispatch loop even though
// the trigger originates outside it.
func ExternalPromiseCompleter(client *sqs.Client, queueURL string, promise value.Value) coroutine.Func {
	return func(ctx context.Context, yield func(value.Value) value.Value) value.Value {
		for {
			out, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:            aws.String(queueURL),
				MaxNumberOfMessages: 1,
				WaitTimeSeconds:     20,
			})
			if err != nil {
				yield(value.AsEffect(value.FailPromise{Promise: promise, Err: err}))
				return value.TheUnit
			}
			if len(out.Messages) == 0 {
				continue
			}
			msg := out.Messages[0]
			yield(value.AsEffect(value.CompletePromise{
				Promise: promise,
				Value:   value.NewString(aws.ToString(msg.Body)),
			}))
			if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(queueURL),
				ReceiptHandle: msg.ReceiptHandle,
			}); err != nil {
				return value.TheUnit
			}
			return value.TheUnit
		}
	}
}
