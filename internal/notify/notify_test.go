package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Deliver(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestDispatcherDelivers(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher([]Sink{sink}, 8, nil)

	d.Emit(EventLive, "vid1", "title", "went live")
	d.Emit(EventCaptureDone, "vid1", "title", "")
	d.Close()

	deadline := time.After(2 * time.Second)
	for {
		events := sink.snapshot()
		if len(events) == 2 {
			if events[0].Kind != EventLive || events[1].Kind != EventCaptureDone {
				t.Fatalf("events = %+v", events)
			}
			if events[0].ID == "" || events[0].ID == events[1].ID {
				t.Fatalf("event IDs not unique: %q vs %q", events[0].ID, events[1].ID)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("got %d events, want 2", len(events))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	// A blocked sink keeps the queue occupied; Emit must not block.
	block := make(chan struct{})
	blocking := sinkFunc(func(ctx context.Context, ev Event) error {
		<-block
		return nil
	})
	d := NewDispatcher([]Sink{blocking}, 1, nil)
	defer close(block)
	defer d.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Emit(EventLive, "vid", "", "")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Emit blocked on a full queue")
	}
}

type sinkFunc func(context.Context, Event) error

func (f sinkFunc) Deliver(ctx context.Context, ev Event) error { return f(ctx, ev) }

func TestWebhookSink(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, srv.Client())
	ev := Event{ID: "e1", Kind: EventUpcoming, VideoID: "vid9"}
	if err := sink.Deliver(context.Background(), ev); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got.ID != "e1" || got.Kind != EventUpcoming || got.VideoID != "vid9" {
		t.Fatalf("webhook payload = %+v", got)
	}
}

func TestWebhookSinkErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, srv.Client())
	if err := sink.Deliver(context.Background(), Event{ID: "e2"}); err == nil {
		t.Fatalf("expected error for 502 response")
	}
}
