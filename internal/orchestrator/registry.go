// Package orchestrator drives one candidate broadcast through the full
// pipeline: title filtering, waiting for the stream to start, track
// selection, segment capture and the final mux. It also owns the bookkeeping
// that stops the same broadcast being processed twice.
package orchestrator

import (
	"fmt"
	"regexp"
	"sync"
)

// OutcomeKind is the terminal status of one processed broadcast.
type OutcomeKind int

const (
	// OutcomeDone: captured (and muxed, when enabled) successfully.
	OutcomeDone OutcomeKind = iota
	// OutcomeError: processing aborted; Reason carries the cause.
	OutcomeError
	// OutcomeSkipped: deliberately not captured; Reason says why.
	OutcomeSkipped
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDone:
		return "done"
	case OutcomeError:
		return "error"
	case OutcomeSkipped:
		return "skipped"
	}
	return "unknown"
}

// Outcome records how processing one broadcast ended.
type Outcome struct {
	VideoID    string
	Kind       OutcomeKind
	Reason     string
	OutputPath string // set for OutcomeDone when muxing ran
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return o.Kind.String()
	}
	return fmt.Sprintf("%s (%s)", o.Kind, o.Reason)
}

// Registry tracks which broadcasts are in flight and which are finished.
// Poll cycles re-surface the same videos every round; the registry is what
// makes processing them idempotent. Safe for concurrent use.
type Registry struct {
	mu         sync.Mutex
	processing map[string]struct{}
	processed  map[string]Outcome
}

func NewRegistry() *Registry {
	return &Registry{
		processing: make(map[string]struct{}),
		processed:  make(map[string]Outcome),
	}
}

// Begin claims a video for processing. It returns false when the video is
// already in flight or already finished.
func (r *Registry) Begin(videoID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.processing[videoID]; ok {
		return false
	}
	if _, ok := r.processed[videoID]; ok {
		return false
	}
	r.processing[videoID] = struct{}{}
	return true
}

// Finish releases a claim and records the outcome.
func (r *Registry) Finish(videoID string, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.processing, videoID)
	r.processed[videoID] = outcome
}

// Abandon releases a claim without recording an outcome, so a later cycle
// may retry the video.
func (r *Registry) Abandon(videoID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.processing, videoID)
}

// Outcome looks up the recorded outcome of a finished video.
func (r *Registry) Outcome(videoID string) (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.processed[videoID]
	return o, ok
}

// InFlight reports whether the video is currently being processed.
func (r *Registry) InFlight(videoID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.processing[videoID]
	return ok
}

// Filter decides from the title and description whether a broadcast should
// be captured. Block wins over Allow; a nil Allow permits everything not
// blocked. The filter is re-checked while waiting for a scheduled stream,
// because titles get edited right up to air time.
type Filter struct {
	Allow *regexp.Regexp
	Block *regexp.Regexp
}

// Permits returns whether the broadcast passes, and a human-readable reason
// when it does not. Block matches either field; Allow must match at least
// one.
func (f Filter) Permits(title, description string) (bool, string) {
	if f.Block != nil && (f.Block.MatchString(title) || f.Block.MatchString(description)) {
		return false, fmt.Sprintf("matches block pattern %q", f.Block)
	}
	if f.Allow != nil && !f.Allow.MatchString(title) && !f.Allow.MatchString(description) {
		return false, fmt.Sprintf("does not match allow pattern %q", f.Allow)
	}
	return true, ""
}
