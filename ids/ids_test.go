package ids

import "testing"

func TestCountersMonotonic(t *testing.T) {
	c := &Counters{}
	if got := c.NextMarker(); got != 1 {
		t.Fatalf("first marker = %d, want 1", got)
	}
	if got := c.NextMarker(); got != 2 {
		t.Fatalf("second marker = %d, want 2", got)
	}
	if got := c.NextSegmentID(); got != 1 {
		t.Fatalf("segment counter shares state with marker counter: got %d", got)
	}
}

func TestNoMarkerIsZero(t *testing.T) {
	if NoMarker != 0 {
		t.Fatalf("NoMarker = %d, want 0", NoMarker)
	}
	c := &Counters{}
	if c.NextMarker() == NoMarker {
		t.Fatalf("first allocated marker collides with NoMarker")
	}
}
