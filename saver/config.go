// Package saver is the embeddable entry point: it watches one channel for
// live and upcoming broadcasts and records them as they happen.
package saver

import (
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Config holds configuration for a channel monitor. The zero value of every
// optional field is replaced by the defaults documented per field.
type Config struct {
	// ChannelURL is the channel to watch, e.g.
	// https://www.youtube.com/channel/UC... or a /@handle URL. Required.
	ChannelURL string

	// OutputRoot is where capture directories are created. Default ".".
	OutputRoot string

	// CookiesPath points to a Netscape-format cookies.txt for membership
	// content. Empty disables authentication.
	CookiesPath string

	// PollInterval spaces channel poll cycles; each cycle is jittered by
	// up to ±25% so many monitors do not fire in lockstep. Default 2m.
	PollInterval time.Duration

	// QueueSize bounds candidates waiting for a worker. Default 4.
	QueueSize int
	// Workers is the number of concurrent capture pipelines. Default 2.
	Workers int

	// DeauthThreshold is how many consecutive membership feed failures
	// signal expired cookies. Default 3.
	DeauthThreshold int

	// MaxHeight caps video resolution in pixels; 0 means best available.
	MaxHeight int
	// Container prefers "mp4" or "webm" tracks; selection falls back across
	// containers when the preference leaves no viable pair. Default "mp4".
	Container string
	// IgnoreQualityChange tolerates itag drift across mid-capture URL
	// refreshes instead of aborting.
	IgnoreQualityChange bool

	// AllowPattern and BlockPattern filter broadcasts by title. Block wins.
	AllowPattern string
	BlockPattern string

	// WebhookURL receives lifecycle events as JSON POSTs. Empty disables.
	WebhookURL string

	// FFmpegPath overrides the ffmpeg binary. Empty means PATH lookup.
	FFmpegPath string
	// SkipMerge leaves raw segment directories instead of muxing.
	SkipMerge bool

	// HTTPClient overrides the transport. When set, CookiesPath is ignored
	// and the client's own jar is used.
	HTTPClient *http.Client

	// Logger receives structured logs. Default is a null logger.
	Logger hclog.Logger
}

// effectiveConfig is the normalized form the saver actually runs on.
type effectiveConfig struct {
	Config
	allow *regexp.Regexp
	block *regexp.Regexp
}

func (c Config) normalize() (effectiveConfig, error) {
	out := effectiveConfig{Config: c}
	if c.ChannelURL == "" {
		return out, fmt.Errorf("ChannelURL is required")
	}
	if out.OutputRoot == "" {
		out.OutputRoot = "."
	}
	if out.PollInterval <= 0 {
		out.PollInterval = 2 * time.Minute
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 4
	}
	if out.Workers <= 0 {
		out.Workers = 2
	}
	if out.Container == "" {
		out.Container = "mp4"
	}
	if out.Logger == nil {
		out.Logger = hclog.NewNullLogger()
	}

	var err error
	if c.AllowPattern != "" {
		if out.allow, err = regexp.Compile(c.AllowPattern); err != nil {
			return out, fmt.Errorf("allow pattern: %w", err)
		}
	}
	if c.BlockPattern != "" {
		if out.block, err = regexp.Compile(c.BlockPattern); err != nil {
			return out, fmt.Errorf("block pattern: %w", err)
		}
	}
	return out, nil
}
