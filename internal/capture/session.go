package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/glubsy/livestream-saver-sub000/internal/quality"
	"github.com/glubsy/livestream-saver-sub000/internal/types"
)

// Refresher re-derives the track selection mid-capture, used when segment
// URLs approach expiry. The returned selection must come from a fresh
// metadata fetch.
type Refresher interface {
	Refresh(ctx context.Context) (quality.Selection, error)
}

// LivenessProbe re-checks whether the broadcast is still live. Some CDN
// edges keep answering 200 with empty bodies after a broadcast ends instead
// of the usual 403, so failed rounds consult this out-of-band signal before
// concluding a segment is merely broken.
type LivenessProbe interface {
	StillLive(ctx context.Context) (bool, error)
}

// Config tunes one capture session. The zero value is normalized to the
// defaults below by NewSession.
type Config struct {
	// OutputDir is the per-broadcast directory holding vid/, aud/ and the
	// metadata sidecar.
	OutputDir string

	// RetryDelay spaces retries of a failed segment fetch. Default 5s.
	RetryDelay time.Duration
	// MaxFetchAttempts bounds attempts per segment per round. Default 10.
	MaxFetchAttempts int
	// MaxRoundsPerSegment bounds full retry rounds at one cursor before the
	// segment is abandoned, leaving a gap in the recording. Default 15.
	MaxRoundsPerSegment int

	// RefreshSegmentCadence and RefreshMinInterval gate URL refresh: every
	// RefreshSegmentCadence segments, refresh if RefreshMinInterval has
	// elapsed since the last one. Defaults 10 segments / 5 minutes.
	RefreshSegmentCadence int
	RefreshMinInterval    time.Duration

	// IgnoreQualityChange accepts a different itag after a refresh instead
	// of aborting. Container changes abort regardless.
	IgnoreQualityChange bool
}

func (c *Config) normalize() {
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.MaxFetchAttempts <= 0 {
		c.MaxFetchAttempts = 10
	}
	if c.MaxRoundsPerSegment <= 0 {
		c.MaxRoundsPerSegment = 15
	}
	if c.RefreshSegmentCadence <= 0 {
		c.RefreshSegmentCadence = 10
	}
	if c.RefreshMinInterval <= 0 {
		c.RefreshMinInterval = 5 * time.Minute
	}
}

// ErrEndOfStream marks the normal termination of a capture: upstream stopped
// serving segments because the broadcast ended.
var ErrEndOfStream = errors.New("end of stream")

// Session drives one broadcast's capture. Create with NewSession, run with
// Run; a session is single-use and not safe for concurrent use.
type Session struct {
	cfg       Config
	client    *http.Client
	log       hclog.Logger
	refresher Refresher
	probe     LivenessProbe

	record types.MetadataRecord
	sel    quality.Selection

	state        State
	cursor       int64
	gaps         []int64
	lastRefresh  time.Time
	sinceRefresh int
}

func NewSession(client *http.Client, rec types.MetadataRecord, sel quality.Selection, refresher Refresher, probe LivenessProbe, cfg Config, logger hclog.Logger) *Session {
	cfg.normalize()
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Session{
		cfg:       cfg,
		client:    client,
		log:       logger.Named("capture").With("video_id", rec.VideoID),
		refresher: refresher,
		probe:     probe,
		record:    rec,
		sel:       sel,
		state:     StateInit,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// Gaps lists sequence numbers abandoned after exhausting every retry round.
func (s *Session) Gaps() []int64 { return s.gaps }

// Cursor returns the next sequence number to fetch.
func (s *Session) Cursor() int64 { return s.cursor }

func (s *Session) setState(next State) {
	if s.state.Terminal() {
		return
	}
	if next != s.state {
		s.log.Debug("state change", "from", s.state, "to", next)
		s.state = next
	}
}

// Run captures segments until the broadcast ends or an unrecoverable error
// occurs. It resumes from whatever segments OutputDir already holds.
func (s *Session) Run(ctx context.Context) error {
	if s.state.Terminal() {
		return fmt.Errorf("session already %s", s.state)
	}

	if err := writeMetadataOnce(s.cfg.OutputDir, s.record, s.sel.Video.Itag, s.sel.Audio.Itag); err != nil {
		s.setState(StateError)
		return fmt.Errorf("write metadata: %w", err)
	}

	cursor, err := ResumeCursor(s.cfg.OutputDir)
	if err != nil {
		s.setState(StateError)
		return fmt.Errorf("scan segments: %w", err)
	}
	s.cursor = cursor
	if cursor > 0 {
		s.log.Info("resuming capture", "cursor", cursor)
	}

	s.setState(StateActive)
	s.lastRefresh = time.Now()

	rounds := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.sinceRefresh >= s.cfg.RefreshSegmentCadence &&
			time.Since(s.lastRefresh) >= s.cfg.RefreshMinInterval {
			if err := s.refreshSelection(ctx); err != nil {
				s.setState(StateError)
				return err
			}
		}

		err := s.fetchPair(ctx, s.cursor)
		switch {
		case err == nil:
			s.setState(StateActive)
			s.cursor++
			s.sinceRefresh++
			rounds = 0
			continue
		case errors.Is(err, ErrEndOfStream):
			s.log.Info("stream ended", "segments", s.cursor, "gaps", len(s.gaps))
			s.setState(StateDone)
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		}

		rounds++
		if done, perr := s.endedUpstream(ctx); perr != nil {
			return perr
		} else if done {
			s.log.Info("broadcast no longer live", "segments", s.cursor, "gaps", len(s.gaps))
			s.setState(StateDone)
			return nil
		}
		if rounds >= s.cfg.MaxRoundsPerSegment {
			// Still live, so give up on this sequence number: an unfillable
			// gap beats a capture stuck forever on one broken segment.
			s.log.Warn("abandoning segment", "seq", s.cursor, "rounds", rounds, "error", err)
			s.gaps = append(s.gaps, s.cursor)
			s.cursor++
			rounds = 0
			continue
		}
		// Segments not landing usually means the live head stalled; park
		// until the next round.
		s.setState(StateWaiting)
		s.log.Debug("segment round failed", "seq", s.cursor, "round", rounds, "error", err)
		if !sleepCtx(ctx, s.cfg.RetryDelay) {
			return ctx.Err()
		}
	}
}

// fetchPair downloads the video and audio segment for one sequence number.
// Both must land for the cursor to advance; a re-fetch after resume simply
// overwrites.
func (s *Session) fetchPair(ctx context.Context, seq int64) error {
	if err := s.fetchTrack(ctx, TrackVideo, s.sel.Video.URL, seq); err != nil {
		return err
	}
	return s.fetchTrack(ctx, TrackAudio, s.sel.Audio.URL, seq)
}

func (s *Session) fetchTrack(ctx context.Context, kind TrackKind, baseURL string, seq int64) error {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxFetchAttempts; attempt++ {
		if attempt > 0 && !sleepCtx(ctx, s.cfg.RetryDelay) {
			return ctx.Err()
		}

		data, err := s.fetchSegment(ctx, baseURL, seq)
		if err == nil {
			return writeSegment(segmentPath(s.cfg.OutputDir, kind, seq), data)
		}
		if errors.Is(err, ErrEndOfStream) || ctx.Err() != nil {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%s segment %d: %w", kind, seq, lastErr)
}

// errEmptySegment: upstream answered 200 with a zero-length body, which
// happens right at the live head. Retryable, and never written to disk.
var errEmptySegment = errors.New("empty segment body")

func (s *Session) fetchSegment(ctx context.Context, baseURL string, seq int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, segmentURL(baseURL, seq), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		// The CDN's way of saying the stream is over (or the URL died for
		// good; the next refresh round would have caught that).
		return nil, ErrEndOfStream
	default:
		return nil, fmt.Errorf("segment %d: status=%d", seq, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errEmptySegment
	}
	return data, nil
}

// endedUpstream consults the liveness probe after a failed round. A probe
// failure is treated as transient; only a definitive "not live" answer ends
// the session.
func (s *Session) endedUpstream(ctx context.Context) (bool, error) {
	if s.probe == nil {
		return false, nil
	}
	live, err := s.probe.StillLive(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		s.log.Warn("liveness check failed", "error", err)
		return false, nil
	}
	return !live, nil
}

func (s *Session) refreshSelection(ctx context.Context) error {
	if s.refresher == nil {
		return nil
	}
	s.setState(StateRefreshing)
	defer s.setState(StateActive)

	refreshed, err := s.refresher.Refresh(ctx)
	if err != nil {
		// Stale URLs keep working for a while; surface the failure on the
		// next segment fetch instead.
		s.log.Warn("selection refresh failed", "error", err)
		s.lastRefresh = time.Now()
		s.sinceRefresh = 0
		return nil
	}
	if err := quality.Compare(s.sel, refreshed, s.cfg.IgnoreQualityChange); err != nil {
		return fmt.Errorf("refreshed selection unusable: %w", err)
	}

	s.sel = refreshed
	s.lastRefresh = time.Now()
	s.sinceRefresh = 0
	s.log.Debug("selection refreshed", "video_itag", refreshed.Video.Itag, "audio_itag", refreshed.Audio.Itag)
	return nil
}

// segmentURL appends the sequence parameter the live CDN expects.
func segmentURL(baseURL string, seq int64) string {
	sep := "?"
	if strings.ContainsRune(baseURL, '?') {
		sep = "&"
	}
	return baseURL + sep + "sq=" + strconv.FormatInt(seq, 10)
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
