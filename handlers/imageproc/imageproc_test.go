package imageproc

import (
	"testing"

	"github.com/deepnoodle-ai/effectvm/value"
)

func TestThumbnailBuildsHostEffect(t *testing.T) {
	y := value.Classify(Thumbnail([]byte("png-bytes"), 64, 48))
	if y.Kind != value.YieldedEffect {
		t.Fatalf("Thumbnail(...) classified as %v, want YieldedEffect", y.Kind)
	}
	he, ok := y.Effect.(value.HostEffect)
	if !ok || he.Name != nameThumbnail {
		t.Fatalf("Thumbnail(...) effect = %+v, want HostEffect{Name: %q}", y.Effect, nameThumbnail)
	}
	req, ok := he.Object.(ThumbnailRequest)
	if !ok || req.Width != 64 || req.Height != 48 {
		t.Fatalf("Thumbnail(...) request = %+v, unexpected", he.Object)
	}
}

func TestHandlerMatchesOnlyThumbnail(t *testing.T) {
	p := New()
	h := p.Handler()
	if !h.CanHandle(value.HostEffect{Name: nameThumbnail}) {
		t.Fatalf("handler does not match Thumbnail")
	}
	if h.CanHandle(value.HostEffect{Name: "Other"}) {
		t.Fatalf("handler incorrectly matches an unrelated host effect")
	}
}

func TestResolverRejectsForeignOpaque(t *testing.T) {
	p := New()
	resolve := p.Resolver()
	other := New()
	req := value.HostEffect{Name: nameThumbnail, Object: ThumbnailRequest{}}
	if _, ok := resolve(other, req); ok {
		t.Fatalf("resolver accepted an opaque identity from a different Processor")
	}
}
