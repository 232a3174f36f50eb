package service

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
)

func TestBBoxRoundTrip(t *testing.T) {
	b := orb.Bound{Min: orb.Point{139.65, 35.67}, Max: orb.Point{139.75, 35.71}}
	s := FormatBBox(b)
	if s != "139.65,35.67,139.75,35.71" {
		t.Fatalf("FormatBBox = %q", s)
	}
	got, err := ParseBBox(s)
	if err != nil {
		t.Fatal(err)
	}
	if got != b {
		t.Errorf("ParseBBox = %v, want %v", got, b)
	}
}

func TestParseBBoxRejects(t *testing.T) {
	for _, s := range []string{"", "1,2,3", "a,b,c,d", "10,0,5,1", "1,2,3,4,5"} {
		if _, err := ParseBBox(s); err == nil {
			t.Errorf("ParseBBox(%q) should fail", s)
		}
	}
}

func TestEstimateBounds(t *testing.T) {
	b := EstimateBounds(FallbackCenter, InitialZoom, 1024, 768)
	if !b.Contains(FallbackCenter) {
		t.Fatalf("bounds %v do not contain center", b)
	}
	// At zoom 14 a 1024px wide viewport spans roughly 0.088 degrees.
	if w := b.Max.Lon() - b.Min.Lon(); w < 0.08 || w > 0.095 {
		t.Errorf("width = %v degrees", w)
	}
	wider := EstimateBounds(FallbackCenter, InitialZoom-1, 1024, 768)
	if wider.Max.Lon()-wider.Min.Lon() <= b.Max.Lon()-b.Min.Lon() {
		t.Error("lower zoom should show a wider area")
	}
}

func TestOutboxKeepsOrder(t *testing.T) {
	out := NewOutbox()
	out.AddControl(Control{ID: "scale", Kind: ControlScale})
	out.SetView(orb.Point{139, 35}, 14)
	out.ShowError("boom")

	select {
	case <-out.Ready():
	case <-time.After(time.Second):
		t.Fatal("outbox not signalled")
	}
	if out.Len() != 3 {
		t.Fatalf("Len = %d, want 3", out.Len())
	}
	cmds := out.Drain()
	if got := ops(cmds); len(got) != 3 || got[0] != OpAddControl || got[1] != OpSetView || got[2] != OpError {
		t.Errorf("ops = %v", got)
	}
	if out.Len() != 0 {
		t.Error("Drain should empty the queue")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(newFakeFetcher(), SessionConfig{})
	a := r.Create()
	b := r.Create()
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
	if e, ok := r.Get(a.Session.ID()); !ok || e.Outbox != a.Outbox {
		t.Error("Get did not return the created entry")
	}
	list := r.List()
	if len(list) != 2 || list[0] == list[1] {
		t.Errorf("List = %v", list)
	}
	if !r.Delete(b.Session.ID()) || r.Delete(b.Session.ID()) {
		t.Error("Delete should succeed once")
	}
	if _, ok := r.Get(b.Session.ID()); ok {
		t.Error("deleted session still present")
	}
}
