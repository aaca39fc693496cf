// Package notify fans capture lifecycle events out to interested sinks
// (log lines, webhooks) without ever blocking the pipeline that emits them.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// EventKind names what happened.
type EventKind string

const (
	EventNewVideo      EventKind = "new_video"
	EventUpcoming      EventKind = "upcoming"
	EventLive          EventKind = "live"
	EventCaptureStart  EventKind = "capture_start"
	EventCaptureDone   EventKind = "capture_done"
	EventCaptureFailed EventKind = "capture_failed"
	EventDeauth        EventKind = "deauth"
)

// Event is one notification. ID is unique per emission so sinks that retry
// or fan out can deduplicate.
type Event struct {
	ID        string            `json:"id"`
	Kind      EventKind         `json:"kind"`
	VideoID   string            `json:"video_id,omitempty"`
	Title     string            `json:"title,omitempty"`
	Message   string            `json:"message,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Sink consumes events. Deliver runs on the dispatcher goroutine; slow
// sinks delay later events but never the emitter.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// Dispatcher queues events and delivers them asynchronously. Emit never
// blocks: when the queue is full the event is dropped with a warning.
type Dispatcher struct {
	log   hclog.Logger
	sinks []Sink
	queue chan Event

	stopOnce sync.Once
	done     chan struct{}
}

func NewDispatcher(sinks []Sink, queueSize int, logger hclog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	d := &Dispatcher{
		log:   logger.Named("notify"),
		sinks: sinks,
		queue: make(chan Event, queueSize),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Emit queues an event for delivery, stamping its ID and timestamp.
func (d *Dispatcher) Emit(kind EventKind, videoID, title, message string) {
	ev := Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		VideoID:   videoID,
		Title:     title,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	select {
	case d.queue <- ev:
	case <-d.done:
	default:
		d.log.Warn("notification queue full, dropping event", "kind", kind, "video_id", videoID)
	}
}

// Close stops delivery after draining what is already queued.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() { close(d.done) })
}

func (d *Dispatcher) run() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.done:
			// Drain without accepting new events.
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, ev); err != nil {
			d.log.Warn("sink delivery failed", "event", ev.Kind, "error", err)
		}
	}
}

// LogSink writes events as log lines.
type LogSink struct {
	Log hclog.Logger
}

func (s *LogSink) Deliver(_ context.Context, ev Event) error {
	s.Log.Info("event", "kind", ev.Kind, "video_id", ev.VideoID, "title", ev.Title, "message", ev.Message)
	return nil
}

// WebhookSink POSTs events as JSON to a fixed URL.
type WebhookSink struct {
	URL    string
	Client *http.Client
}

func NewWebhookSink(url string, client *http.Client) *WebhookSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookSink{URL: url, Client: client}
}

func (s *WebhookSink) Deliver(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s: status=%d", s.URL, resp.StatusCode)
	}
	return nil
}
