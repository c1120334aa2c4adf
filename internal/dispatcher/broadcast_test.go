package dispatcher

import (
	"testing"
	"time"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster()
	a, cancelA := b.Subscribe(4)
	c, cancelC := b.Subscribe(4)
	defer cancelA()
	defer cancelC()

	b.Publish(Event{Kind: EventStatusChanged})
	for _, ch := range []<-chan Event{a, c} {
		select {
		case e := <-ch:
			if e.Kind != EventStatusChanged {
				t.Fatalf("kind = %q", e.Kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber did not receive event")
		}
	}
}

func TestBroadcaster_SlowSubscriberDrops(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	b.Publish(Event{Kind: EventError, Error: "first"})
	b.Publish(Event{Kind: EventError, Error: "second"})
	if b.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", b.Dropped())
	}
	if e := <-ch; e.Error != "first" {
		t.Fatalf("got %q, want first", e.Error)
	}
}

func TestBroadcaster_CancelClosesOnce(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe(0)
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	if b.subscribers() != 0 {
		t.Fatalf("subscriber not removed")
	}
	b.Publish(Event{Kind: EventStatusChanged})
}

func TestDispatcherPublishesToBroadcaster(t *testing.T) {
	bc := NewBroadcaster()
	ch, cancel := bc.Subscribe(8)
	defer cancel()
	sub, remote := subAndRemote()
	sub.available = false
	d := New(Config{Settings: DefaultSettings(), Publisher: bc})
	if err := d.Initialize(testCtx(t), sub, remote); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	e := <-ch
	if e.Kind != EventBackendSwitched || e.To != remote.Identity() {
		t.Fatalf("first event = %+v", e)
	}
}
