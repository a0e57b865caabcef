package notify

import (
	"testing"
	"time"
)

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	h := NewHub(nil)
	_, a := h.Subscribe()
	_, b := h.Subscribe()

	h.Publish(Event{Event: EventChange, Path: "/tasks/backlog/x.md"})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case ev := <-ch:
			if ev.Event != EventChange || ev.Path != "/tasks/backlog/x.md" {
				t.Fatalf("unexpected event %+v", ev)
			}
			if ev.Timestamp == 0 {
				t.Fatal("timestamp not set")
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestHub_SubscriberIDsAreUnique(t *testing.T) {
	h := NewHub(nil)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, _ := h.Subscribe()
		if seen[id] {
			t.Fatalf("duplicate subscriber id %s", id)
		}
		seen[id] = true
	}
	if h.Len() != 50 {
		t.Fatalf("expected 50 subscribers, got %d", h.Len())
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(nil)
	id, ch := h.Subscribe()
	h.Unsubscribe(id)
	h.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	if h.Len() != 0 {
		t.Fatalf("expected no subscribers, got %d", h.Len())
	}
	h.Publish(Event{Event: EventAdd})
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	h := NewHub(nil)
	h.buffer = 1
	_, slow := h.Subscribe()

	h.Publish(Event{Event: EventAdd})
	h.Publish(Event{Event: EventChange})

	if h.Len() != 0 {
		t.Fatalf("slow subscriber should be dropped, got %d subscribers", h.Len())
	}
	if ev := <-slow; ev.Event != EventAdd {
		t.Fatalf("buffered event lost: %+v", ev)
	}
	if _, ok := <-slow; ok {
		t.Fatal("channel should be closed after drop")
	}
}

func TestHub_ProjectSwitched(t *testing.T) {
	h := NewHub(nil)
	_, ch := h.Subscribe()
	h.ProjectSwitched("side-project")

	ev := <-ch
	if ev.Event != EventProjectSwitched || ev.ProjectID != "side-project" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestHub_Close(t *testing.T) {
	h := NewHub(nil)
	_, a := h.Subscribe()
	h.Close()
	if _, ok := <-a; ok {
		t.Fatal("channel should be closed")
	}
}
