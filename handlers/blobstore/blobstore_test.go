package blobstore

import (
	"testing"

	"github.com/deepnoodle-ai/effectvm/value"
)

func TestPutGetBuildHostEffects(t *testing.T) {
	y := value.Classify(Put("a.png", []byte("data")))
	if y.Kind != value.YieldedEffect {
		t.Fatalf("Put(...) classified as %v, want YieldedEffect", y.Kind)
	}
	he, ok := y.Effect.(value.HostEffect)
	if !ok || he.Name != nameBlobPut {
		t.Fatalf("Put(...) effect = %+v, want HostEffect{Name: %q}", y.Effect, nameBlobPut)
	}
	req, ok := he.Object.(PutRequest)
	if !ok || req.Key != "a.png" || string(req.Data) != "data" {
		t.Fatalf("Put(...) request = %+v, unexpected", he.Object)
	}

	y = value.Classify(Get("a.png"))
	he, ok = y.Effect.(value.HostEffect)
	if !ok || he.Name != nameBlobGet {
		t.Fatalf("Get(...) effect = %+v, want HostEffect{Name: %q}", y.Effect, nameBlobGet)
	}
}

func TestHandlerMatchesOnlyBlobEffects(t *testing.T) {
	s := New(nil, "bucket")
	h := s.Handler()
	if !h.CanHandle(value.HostEffect{Name: nameBlobPut}) {
		t.Fatalf("handler does not match BlobPut")
	}
	if !h.CanHandle(value.HostEffect{Name: nameBlobGet}) {
		t.Fatalf("handler does not match BlobGet")
	}
	if h.CanHandle(value.HostEffect{Name: "Other"}) {
		t.Fatalf("handler incorrectly matches an unrelated host effect")
	}
	if h.CanHandle(value.Get{Key: "x"}) {
		t.Fatalf("handler incorrectly matches a non-host effect")
	}
}

func TestResolverRejectsForeignOpaque(t *testing.T) {
	s := New(nil, "bucket")
	resolve := s.Resolver()
	other := New(nil, "other-bucket")
	if _, ok := resolve(other, value.HostEffect{Name: nameBlobPut}); ok {
		t.Fatalf("resolver accepted an opaque identity from a different Store")
	}
}
