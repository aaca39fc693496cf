package saver

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/glubsy/livestream-saver-sub000/internal/channel"
	"github.com/glubsy/livestream-saver-sub000/internal/cookies"
	"github.com/glubsy/livestream-saver-sub000/internal/innertube"
	"github.com/glubsy/livestream-saver-sub000/internal/muxer"
	"github.com/glubsy/livestream-saver-sub000/internal/notify"
	"github.com/glubsy/livestream-saver-sub000/internal/orchestrator"
	"github.com/glubsy/livestream-saver-sub000/internal/playerjs"
	"github.com/glubsy/livestream-saver-sub000/internal/types"
)

// candidateSource yields one poll cycle per call. *channel.Poller
// satisfies it.
type candidateSource interface {
	Poll(ctx context.Context) (*channel.CycleResult, error)
}

// pipeline drives one candidate to an outcome. *orchestrator.Processor
// satisfies it.
type pipeline interface {
	Process(ctx context.Context, rec types.MetadataRecord) orchestrator.Outcome
	Registry() *orchestrator.Registry
}

// Saver monitors one channel and captures its broadcasts.
type Saver struct {
	cfg    effectiveConfig
	log    hclog.Logger
	source candidateSource
	proc   pipeline
	events *notify.Dispatcher
	queue  chan types.MetadataRecord
}

// New assembles a saver from configuration: cookie jar, innertube session,
// channel poller, notification sinks and the capture pipeline.
func New(cfg Config) (*Saver, error) {
	eff, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	log := eff.Logger

	httpClient := eff.HTTPClient
	if httpClient == nil {
		jar, err := buildJar(eff.CookiesPath, eff.ChannelURL, log)
		if err != nil {
			return nil, err
		}
		httpClient = &http.Client{Jar: jar, Timeout: 30 * time.Second}
	}

	session := innertube.NewSession(httpClient, log)

	var sinks []notify.Sink
	sinks = append(sinks, &notify.LogSink{Log: log.Named("events")})
	if eff.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(eff.WebhookURL, nil))
	}
	events := notify.NewDispatcher(sinks, 0, log)

	resolver := playerjs.NewResolver(playerjs.NewFetcher(httpClient, playerjs.NewMemoryCache()), log)
	merger := muxer.NewFFmpegMuxer(eff.FFmpegPath, log)

	proc := orchestrator.NewProcessor(session, httpClient, resolver, merger, events,
		orchestrator.Filter{Allow: eff.allow, Block: eff.block},
		orchestrator.Config{
			OutputRoot:          eff.OutputRoot,
			MaxHeight:           eff.MaxHeight,
			Container:           eff.Container,
			IgnoreQualityChange: eff.IgnoreQualityChange,
			SkipMerge:           eff.SkipMerge,
		}, log)

	poller := channel.NewPoller(session, channel.Config{
		ChannelURL:      eff.ChannelURL,
		DeauthThreshold: eff.DeauthThreshold,
	}, channelHooks(events), log)

	return &Saver{
		cfg:    eff,
		log:    log.Named("saver"),
		source: poller,
		proc:   proc,
		events: events,
		queue:  make(chan types.MetadataRecord, eff.QueueSize),
	}, nil
}

// channelHooks forwards poller detections to the notification sinks. Live
// and upcoming candidates additionally reach the capture queue through
// pollOnce; plain new videos are notification-only.
func channelHooks(events *notify.Dispatcher) channel.Hooks {
	return channel.Hooks{
		OnNewVideo: func(rec types.MetadataRecord) {
			events.Emit(notify.EventNewVideo, rec.VideoID, rec.Title, "")
		},
		OnUpcoming: func(rec types.MetadataRecord) {
			events.Emit(notify.EventUpcoming, rec.VideoID, rec.Title, "")
		},
		OnLive: func(rec types.MetadataRecord) {
			events.Emit(notify.EventLive, rec.VideoID, rec.Title, "")
		},
		OnDeauth: func(n int) {
			events.Emit(notify.EventDeauth, "", "", fmt.Sprintf("authentication suspect, signal count %d", n))
		},
	}
}

func buildJar(cookiesPath, siteURL string, log hclog.Logger) (http.CookieJar, error) {
	if cookiesPath == "" {
		return cookiejar.New(nil)
	}
	jar, expired, err := cookies.LoadJar(cookiesPath, siteURL)
	if err != nil {
		return nil, fmt.Errorf("load cookies: %w", err)
	}
	if expired > 0 {
		log.Warn("dropped expired cookies", "count", expired)
	}
	return jar, nil
}

// Run polls the channel until the context is cancelled, dispatching every
// live or upcoming candidate to a worker. It returns the context's error.
func (s *Saver) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx)
		}()
	}

	s.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.events.Close()
			return ctx.Err()
		case <-time.After(jitter(s.cfg.PollInterval)):
			s.pollOnce(ctx)
		}
	}
}

func (s *Saver) pollOnce(ctx context.Context) {
	cycle, err := s.source.Poll(ctx)
	if err != nil {
		s.log.Warn("poll cycle failed", "error", err)
		return
	}
	s.log.Debug("poll cycle", "videos", len(cycle.All), "new", len(cycle.New),
		"duplicates", cycle.Duplicates)

	for _, rec := range cycle.All {
		if !rec.IsLiveNow && !rec.IsUpcoming {
			continue
		}
		s.enqueue(rec)
	}
}

// enqueue hands a candidate to the workers without ever blocking the poll
// loop; an already-handled or in-flight video is not queued again.
func (s *Saver) enqueue(rec types.MetadataRecord) {
	reg := s.proc.Registry()
	if reg.InFlight(rec.VideoID) {
		return
	}
	if _, done := reg.Outcome(rec.VideoID); done {
		return
	}
	select {
	case s.queue <- rec:
	default:
		s.log.Warn("capture queue full, deferring to next cycle",
			"video_id", rec.VideoID, "title", rec.Title)
	}
}

func (s *Saver) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-s.queue:
			out := s.proc.Process(ctx, rec)
			s.log.Info("candidate finished", "video_id", rec.VideoID, "outcome", out.String())
		}
	}
}

// CaptureOne runs the pipeline for a single video ID and returns its
// outcome, bypassing channel monitoring entirely.
func (s *Saver) CaptureOne(ctx context.Context, videoID string) orchestrator.Outcome {
	return s.proc.Process(ctx, types.MetadataRecord{VideoID: videoID})
}

// jitter spreads d by up to ±25%.
func jitter(d time.Duration) time.Duration {
	f := 0.75 + 0.5*rand.Float64()
	return time.Duration(float64(d) * f)
}
