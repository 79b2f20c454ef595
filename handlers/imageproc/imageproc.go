// Package imageproc is a reference Host effect handler backing a
// Thumbnail operation with github.com/anthonynsimon/bild, exercising a
// HostCallable handler whose native implementation does real CPU work
// outside the VM's own data model (spec.md §4.4 Host effect).
package imageproc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/anthonynsimon/bild/transform"
	"github.com/gofrs/uuid"

	"github.com/deepnoodle-ai/effectvm/driver"
	"github.com/deepnoodle-ai/effectvm/handler"
	"github.com/deepnoodle-ai/effectvm/value"
)

const nameThumbnail = "Thumbnail"

// ThumbnailRequest is the Object carried by a value.HostEffect{Name:
// "Thumbnail"} effect.
type ThumbnailRequest struct {
	Source        []byte
	Width, Height int
}

// Thumbnail builds the effect value a program yields to resize an image.
func Thumbnail(source []byte, width, height int) value.Value {
	return value.AsEffect(value.HostEffect{
		Name:   nameThumbnail,
		Object: ThumbnailRequest{Source: source, Width: width, Height: height},
	})
}

// Processor has no state of its own; it exists only to give Handler and
// Resolver a matched pair of Opaque identities (one Processor can be
// shared across every dispatch, unlike sqlstore/blobstore which hold a
// live connection).
type Processor struct{}

func New() *Processor { return &Processor{} }

// Handler builds the HostCallableHandler to install around a program.
func (p *Processor) Handler() *handler.HostCallableHandler {
	return &handler.HostCallableHandler{
		Matches: func(e value.Effect) bool {
			h, ok := e.(value.HostEffect)
			return ok && h.Name == nameThumbnail
		},
		Opaque: p,
	}
}

// Resolver builds the driver.HandlerResolver to pass to
// effectvm.WithHandlerResolver alongside Handler.
func (p *Processor) Resolver() driver.HandlerResolver {
	return func(opaque any, effect value.Effect) (driver.HostFunc, bool) {
		proc, ok := opaque.(*Processor)
		if !ok || proc != p {
			return nil, false
		}
		h, ok := effect.(value.HostEffect)
		if !ok || h.Name != nameThumbnail {
			return nil, false
		}
		req := h.Object.(ThumbnailRequest)
		return func(ctx context.Context, _ []value.Value) (value.Value, error) {
			return proc.resize(req)
		}, true
	}
}

func (p *Processor) resize(req ThumbnailRequest) (value.Value, error) {
	img, _, err := image.Decode(bytes.NewReader(req.Source))
	if err != nil {
		return nil, fmt.Errorf("imageproc: decoding source image: %w", err)
	}
	resized := transform.Resize(img, req.Width, req.Height, transform.Linear)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return nil, fmt.Errorf("imageproc: encoding thumbnail: %w", err)
	}
	tag, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("imageproc: tagging thumbnail result: %w", err)
	}
	return &value.Host{Tag: tag.String(), Object: buf.Bytes()}, nil
}
