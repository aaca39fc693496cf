package saver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/glubsy/livestream-saver-sub000/internal/channel"
	"github.com/glubsy/livestream-saver-sub000/internal/notify"
	"github.com/glubsy/livestream-saver-sub000/internal/orchestrator"
	"github.com/glubsy/livestream-saver-sub000/internal/types"
)

func TestConfigNormalize(t *testing.T) {
	if _, err := (Config{}).normalize(); err == nil {
		t.Fatalf("missing ChannelURL must be rejected")
	}

	eff, err := Config{ChannelURL: "https://example.com/channel/UCx"}.normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if eff.PollInterval != 2*time.Minute {
		t.Fatalf("poll interval = %v", eff.PollInterval)
	}
	if eff.QueueSize != 4 || eff.Workers != 2 {
		t.Fatalf("queue=%d workers=%d", eff.QueueSize, eff.Workers)
	}
	if eff.Container != "mp4" {
		t.Fatalf("container = %q, want mp4 default", eff.Container)
	}
	if eff.OutputRoot != "." {
		t.Fatalf("output root = %q", eff.OutputRoot)
	}

	if _, err := (Config{ChannelURL: "x", AllowPattern: "("}).normalize(); err == nil {
		t.Fatalf("invalid allow pattern must be rejected")
	}
}

func TestJitterBounds(t *testing.T) {
	base := 120 * time.Second
	for i := 0; i < 1000; i++ {
		d := jitter(base)
		if d < 90*time.Second || d > 150*time.Second {
			t.Fatalf("jitter(%v) = %v, outside ±25%%", base, d)
		}
	}
}

// fakeSource returns a fixed cycle each poll.
type fakeSource struct {
	mu    sync.Mutex
	cycle *channel.CycleResult
	polls int
}

func (f *fakeSource) Poll(ctx context.Context) (*channel.CycleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	return f.cycle, nil
}

// fakePipeline records processed IDs.
type fakePipeline struct {
	mu       sync.Mutex
	registry *orchestrator.Registry
	handled  []string
	block    chan struct{} // optional: hold Process open
}

func (f *fakePipeline) Process(ctx context.Context, rec types.MetadataRecord) orchestrator.Outcome {
	if !f.registry.Begin(rec.VideoID) {
		return orchestrator.Outcome{VideoID: rec.VideoID, Kind: orchestrator.OutcomeSkipped, Reason: "already handled"}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.handled = append(f.handled, rec.VideoID)
	f.mu.Unlock()
	out := orchestrator.Outcome{VideoID: rec.VideoID, Kind: orchestrator.OutcomeDone}
	f.registry.Finish(rec.VideoID, out)
	return out
}

func (f *fakePipeline) Registry() *orchestrator.Registry { return f.registry }

func (f *fakePipeline) handledIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.handled...)
}

func testSaver(source candidateSource, proc pipeline, queueSize int) *Saver {
	eff, _ := Config{ChannelURL: "https://example.com/c", QueueSize: queueSize,
		PollInterval: 10 * time.Millisecond}.normalize()
	return &Saver{
		cfg:    eff,
		log:    hclog.NewNullLogger(),
		source: source,
		proc:   proc,
		events: notify.NewDispatcher(nil, 0, nil),
		queue:  make(chan types.MetadataRecord, queueSize),
	}
}

func TestRunDispatchesLiveCandidates(t *testing.T) {
	source := &fakeSource{cycle: &channel.CycleResult{
		All: []types.MetadataRecord{
			{VideoID: "live1", IsLiveNow: true},
			{VideoID: "vod1"}, // neither live nor upcoming: ignored
			{VideoID: "up1", IsUpcoming: true},
		},
	}}
	proc := &fakePipeline{registry: orchestrator.NewRegistry()}
	s := testSaver(source, proc, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()

	deadline := time.After(2 * time.Second)
	for len(proc.handledIDs()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("handled = %v, want live1 and up1", proc.handledIDs())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	ids := map[string]bool{}
	for _, id := range proc.handledIDs() {
		ids[id] = true
	}
	if !ids["live1"] || !ids["up1"] || ids["vod1"] {
		t.Fatalf("handled = %v", proc.handledIDs())
	}
}

func TestRunDoesNotReprocessAcrossCycles(t *testing.T) {
	source := &fakeSource{cycle: &channel.CycleResult{
		All: []types.MetadataRecord{{VideoID: "live1", IsLiveNow: true}},
	}}
	proc := &fakePipeline{registry: orchestrator.NewRegistry()}
	s := testSaver(source, proc, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()

	// Let several poll cycles elapse.
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	source.mu.Lock()
	polls := source.polls
	source.mu.Unlock()
	if polls < 2 {
		t.Fatalf("only %d poll cycles ran", polls)
	}
	if got := proc.handledIDs(); len(got) != 1 {
		t.Fatalf("processed %d times across %d cycles: %v", len(got), polls, got)
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	proc := &fakePipeline{registry: orchestrator.NewRegistry()}
	s := testSaver(&fakeSource{}, proc, 1)

	// No workers running: the queue fills and later candidates drop.
	s.enqueue(types.MetadataRecord{VideoID: "a", IsLiveNow: true})
	s.enqueue(types.MetadataRecord{VideoID: "b", IsLiveNow: true})
	s.enqueue(types.MetadataRecord{VideoID: "c", IsLiveNow: true})

	if len(s.queue) != 1 {
		t.Fatalf("queue length = %d, want 1", len(s.queue))
	}
}

type recordingSink struct {
	mu  sync.Mutex
	evs []notify.Event
}

func (s *recordingSink) Deliver(_ context.Context, ev notify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evs = append(s.evs, ev)
	return nil
}

func (s *recordingSink) kinds() map[notify.EventKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[notify.EventKind]int{}
	for _, ev := range s.evs {
		out[ev.Kind]++
	}
	return out
}

func TestChannelHooksEmitEvents(t *testing.T) {
	sink := &recordingSink{}
	events := notify.NewDispatcher([]notify.Sink{sink}, 0, nil)
	defer events.Close()

	hooks := channelHooks(events)
	hooks.OnNewVideo(types.MetadataRecord{VideoID: "vod1", Title: "a plain upload"})
	hooks.OnUpcoming(types.MetadataRecord{VideoID: "up1"})
	hooks.OnLive(types.MetadataRecord{VideoID: "live1"})
	hooks.OnDeauth(3)

	deadline := time.After(2 * time.Second)
	for len(sink.kinds()) < 4 {
		select {
		case <-deadline:
			t.Fatalf("delivered kinds = %v", sink.kinds())
		case <-time.After(5 * time.Millisecond):
		}
	}
	got := sink.kinds()
	for _, kind := range []notify.EventKind{notify.EventNewVideo, notify.EventUpcoming, notify.EventLive, notify.EventDeauth} {
		if got[kind] != 1 {
			t.Fatalf("kind %s delivered %d times: %v", kind, got[kind], got)
		}
	}
}

func TestNewRequiresChannelURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for empty config")
	}
}
