package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/glubsy/livestream-saver-sub000/internal/capture"
	"github.com/glubsy/livestream-saver-sub000/internal/formats"
	"github.com/glubsy/livestream-saver-sub000/internal/innertube"
	"github.com/glubsy/livestream-saver-sub000/internal/notify"
	"github.com/glubsy/livestream-saver-sub000/internal/quality"
	"github.com/glubsy/livestream-saver-sub000/internal/status"
	"github.com/glubsy/livestream-saver-sub000/internal/types"
)

// MetadataFetcher supplies fresh player metadata. *innertube.Session
// satisfies it.
type MetadataFetcher interface {
	FetchPlayerResponse(ctx context.Context, videoID string) (*innertube.PlayerResponse, error)
}

// TrackResolver fills in URLs for ciphered descriptors.
// *playerjs.Resolver satisfies it.
type TrackResolver interface {
	ResolveTracks(ctx context.Context, tracks []formats.TrackDescriptor, videoID string) error
}

// Merger assembles the final file from a capture directory.
// *muxer.FFmpegMuxer satisfies it.
type Merger interface {
	Available() bool
	Merge(ctx context.Context, captureDir string) (string, error)
}

// Config tunes the processing pipeline.
type Config struct {
	// OutputRoot is the directory under which each broadcast gets its own
	// capture directory.
	OutputRoot string

	// MaxHeight and Container feed quality selection.
	MaxHeight int
	Container string
	// IgnoreQualityChange tolerates itag drift across URL refreshes.
	IgnoreQualityChange bool

	// WaitPollInterval spaces status re-checks while a scheduled broadcast
	// has not started. Default 30s.
	WaitPollInterval time.Duration

	// Capture is passed through to each capture session (OutputDir is set
	// per broadcast).
	Capture capture.Config

	// SkipMerge leaves the segment directories unmuxed.
	SkipMerge bool
}

func (c *Config) normalize() {
	if c.WaitPollInterval <= 0 {
		c.WaitPollInterval = 30 * time.Second
	}
	if c.OutputRoot == "" {
		c.OutputRoot = "."
	}
}

// Processor runs candidates through the pipeline. Safe for concurrent use;
// the registry serializes work per video ID.
type Processor struct {
	fetcher  MetadataFetcher
	client   *http.Client
	resolver TrackResolver
	merger   Merger
	events   *notify.Dispatcher
	registry *Registry
	filter   Filter
	log      hclog.Logger
	cfg      Config
}

func NewProcessor(fetcher MetadataFetcher, client *http.Client, resolver TrackResolver, merger Merger, events *notify.Dispatcher, filter Filter, cfg Config, logger hclog.Logger) *Processor {
	cfg.normalize()
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Processor{
		fetcher:  fetcher,
		client:   client,
		resolver: resolver,
		merger:   merger,
		events:   events,
		registry: NewRegistry(),
		filter:   filter,
		log:      logger.Named("orchestrator"),
		cfg:      cfg,
	}
}

// Registry exposes the processed/processing bookkeeping.
func (p *Processor) Registry() *Registry { return p.registry }

// Process drives one candidate to a terminal outcome. A panic anywhere in
// the pipeline is recovered into OutcomeError so one broken broadcast never
// takes down the monitor.
func (p *Processor) Process(ctx context.Context, rec types.MetadataRecord) (outcome Outcome) {
	log := p.log.With("video_id", rec.VideoID)

	if ok, reason := p.filter.Permits(rec.Title, rec.Description); !ok {
		return Outcome{VideoID: rec.VideoID, Kind: OutcomeSkipped, Reason: reason}
	}
	if !p.registry.Begin(rec.VideoID) {
		return Outcome{VideoID: rec.VideoID, Kind: OutcomeSkipped, Reason: "already handled"}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing", "panic", r, "stack", string(debug.Stack()))
			outcome = Outcome{VideoID: rec.VideoID, Kind: OutcomeError, Reason: fmt.Sprintf("panic: %v", r)}
		}
		p.registry.Finish(rec.VideoID, outcome)
		p.emitOutcome(rec, outcome)
	}()

	outcome = p.run(ctx, log, rec)
	return outcome
}

func (p *Processor) run(ctx context.Context, log hclog.Logger, rec types.MetadataRecord) Outcome {
	fail := func(format string, args ...any) Outcome {
		return Outcome{VideoID: rec.VideoID, Kind: OutcomeError, Reason: fmt.Sprintf(format, args...)}
	}
	resp, out := p.awaitLive(ctx, log, &rec)
	if out != nil {
		return *out
	}

	tracks, err := p.deriveTracks(ctx, resp, rec.VideoID)
	if err != nil {
		return fail("derive tracks: %v", err)
	}
	sel, err := quality.Select(tracks, quality.Criteria{
		MaxHeight: p.cfg.MaxHeight,
		Container: p.cfg.Container,
	})
	if err != nil {
		return fail("select quality: %v", err)
	}
	log.Info("selected tracks", "video_itag", sel.Video.Itag, "quality", sel.Video.QualityLabel,
		"audio_itag", sel.Audio.Itag)

	captureCfg := p.cfg.Capture
	captureCfg.OutputDir = filepath.Join(p.cfg.OutputRoot, rec.VideoID)
	captureCfg.IgnoreQualityChange = p.cfg.IgnoreQualityChange

	p.emit(notify.EventCaptureStart, rec, "")
	sess := capture.NewSession(p.client, rec, sel, p.refresher(rec.VideoID), p.liveness(rec.VideoID), captureCfg, p.log)
	if err := sess.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return fail("capture interrupted: %v", err)
		}
		return fail("capture: %v", err)
	}

	result := Outcome{VideoID: rec.VideoID, Kind: OutcomeDone}
	if len(sess.Gaps()) > 0 {
		result.Reason = fmt.Sprintf("%d segment gaps", len(sess.Gaps()))
	}

	if !p.cfg.SkipMerge && p.merger != nil {
		if !p.merger.Available() {
			log.Warn("muxer unavailable, leaving raw segments")
			return result
		}
		outPath, err := p.merger.Merge(ctx, captureCfg.OutputDir)
		if err != nil {
			return fail("merge: %v", err)
		}
		result.OutputPath = outPath
	}
	return result
}

// awaitLive polls player metadata until the broadcast is live and playable.
// It returns a terminal outcome instead when the broadcast turns out to be
// unreachable, filtered out, or not live at all.
func (p *Processor) awaitLive(ctx context.Context, log hclog.Logger, rec *types.MetadataRecord) (*innertube.PlayerResponse, *Outcome) {
	var st status.Status
	announcedWait := false

	for {
		if err := ctx.Err(); err != nil {
			out := Outcome{VideoID: rec.VideoID, Kind: OutcomeError, Reason: err.Error()}
			return nil, &out
		}

		resp, err := p.fetcher.FetchPlayerResponse(ctx, rec.VideoID)
		next, cond := status.Update(st, resp, err)
		st = next

		if resp != nil && resp.VideoDetails.Title != "" {
			rec.Title = resp.VideoDetails.Title
		}
		if resp != nil && resp.VideoDetails.ShortDescription != "" {
			rec.Description = resp.VideoDetails.ShortDescription
		}
		// Titles change while waiting; a rename can move the broadcast in
		// or out of scope.
		if ok, reason := p.filter.Permits(rec.Title, rec.Description); !ok {
			out := Outcome{VideoID: rec.VideoID, Kind: OutcomeSkipped, Reason: reason}
			return nil, &out
		}

		switch cond.Kind {
		case status.CondLoginRequired:
			out := Outcome{VideoID: rec.VideoID, Kind: OutcomeError,
				Reason: fmt.Sprintf("login required: %s", cond.Reason)}
			return nil, &out
		case status.CondUnplayable:
			out := Outcome{VideoID: rec.VideoID, Kind: OutcomeError,
				Reason: fmt.Sprintf("unplayable: %s", cond.Reason)}
			return nil, &out
		case status.CondScheduled, status.CondStillWaiting:
			if !announcedWait {
				log.Info("waiting for scheduled start", "start", cond.ScheduledStart)
				p.emit(notify.EventUpcoming, *rec, cond.ScheduledStart.String())
				announcedWait = true
			}
		case status.CondWentOffline:
			if st.Has(status.ViewedLive) {
				// It was live and ended before capture began; the VOD path
				// is out of scope for a live recorder.
				out := Outcome{VideoID: rec.VideoID, Kind: OutcomeSkipped, Reason: "broadcast already ended"}
				return nil, &out
			}
		case status.CondFetchFailed, status.CondRateLimited, status.CondOutdatedClient:
			log.Warn("metadata fetch trouble", "condition", cond.Kind, "error", cond.Reason)
		}

		if st.OK() {
			p.emit(notify.EventLive, *rec, "")
			return resp, nil
		}
		if st.Has(status.Available) && !st.Has(status.Live) && !st.Has(status.Waiting) {
			out := Outcome{VideoID: rec.VideoID, Kind: OutcomeSkipped, Reason: "not a live broadcast"}
			return nil, &out
		}

		if !sleepCtx(ctx, p.cfg.WaitPollInterval) {
			out := Outcome{VideoID: rec.VideoID, Kind: OutcomeError, Reason: ctx.Err().Error()}
			return nil, &out
		}
	}
}

// deriveTracks parses the response's format list, falling back to the HLS
// master manifest when the list is empty, and resolves any ciphered URLs.
func (p *Processor) deriveTracks(ctx context.Context, resp *innertube.PlayerResponse, videoID string) ([]formats.TrackDescriptor, error) {
	tracks := formats.Parse(resp)
	if len(tracks) == 0 && resp.StreamingData.HlsManifestURL != "" {
		manifestTracks, err := formats.FetchManifestTracks(ctx, p.client, resp.StreamingData.HlsManifestURL)
		if err != nil {
			return nil, fmt.Errorf("manifest fallback: %w", err)
		}
		tracks = manifestTracks
	}
	if p.resolver != nil {
		if err := p.resolver.ResolveTracks(ctx, tracks, videoID); err != nil {
			return nil, err
		}
	}
	return tracks, nil
}

// refresher adapts the processor into the capture session's refresh hook.
func (p *Processor) refresher(videoID string) capture.Refresher {
	return refreshFunc(func(ctx context.Context) (quality.Selection, error) {
		resp, err := p.fetcher.FetchPlayerResponse(ctx, videoID)
		if err != nil {
			return quality.Selection{}, err
		}
		tracks, err := p.deriveTracks(ctx, resp, videoID)
		if err != nil {
			return quality.Selection{}, err
		}
		return quality.Select(tracks, quality.Criteria{
			MaxHeight: p.cfg.MaxHeight,
			Container: p.cfg.Container,
		})
	})
}

type refreshFunc func(ctx context.Context) (quality.Selection, error)

func (f refreshFunc) Refresh(ctx context.Context) (quality.Selection, error) { return f(ctx) }

// liveness adapts the metadata fetcher into the capture session's
// out-of-band end-of-broadcast check.
func (p *Processor) liveness(videoID string) capture.LivenessProbe {
	return livenessFunc(func(ctx context.Context) (bool, error) {
		resp, err := p.fetcher.FetchPlayerResponse(ctx, videoID)
		if err != nil {
			return false, err
		}
		st, _ := status.Update(0, resp, nil)
		return st.Has(status.Live), nil
	})
}

type livenessFunc func(ctx context.Context) (bool, error)

func (f livenessFunc) StillLive(ctx context.Context) (bool, error) { return f(ctx) }

func (p *Processor) emit(kind notify.EventKind, rec types.MetadataRecord, message string) {
	if p.events == nil {
		return
	}
	p.events.Emit(kind, rec.VideoID, rec.Title, message)
}

func (p *Processor) emitOutcome(rec types.MetadataRecord, outcome Outcome) {
	switch outcome.Kind {
	case OutcomeDone:
		p.emit(notify.EventCaptureDone, rec, outcome.OutputPath)
	case OutcomeError:
		p.emit(notify.EventCaptureFailed, rec, outcome.Reason)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
