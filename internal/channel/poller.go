package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/glubsy/livestream-saver-sub000/internal/innertube"
	"github.com/glubsy/livestream-saver-sub000/internal/types"
)

// Feed names one channel tab the poller walks.
type Feed string

const (
	FeedHome       Feed = "home"
	FeedVideos     Feed = "videos"
	FeedLive       Feed = "live"
	FeedCommunity  Feed = "community"
	FeedMembership Feed = "membership"
)

// DefaultFeeds is the walk order of a poll cycle. Live comes first so a
// broadcast in progress is surfaced even if a later feed fetch fails.
var DefaultFeeds = []Feed{FeedLive, FeedHome, FeedVideos, FeedCommunity, FeedMembership}

// DefaultDeauthThreshold is how many consecutive membership-feed failures
// are tolerated before the poller reports lost authentication.
const DefaultDeauthThreshold = 3

// Browser is the transport surface the poller needs. *innertube.Session
// satisfies it.
type Browser interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
	FetchBrowse(ctx context.Context, browseID, params string) (*innertube.BrowseResponse, error)
}

// Hooks are optional per-cycle callbacks. They run synchronously on the
// polling goroutine; keep them cheap.
type Hooks struct {
	// OnNewVideo fires once for every record not present in the previous
	// cycle, except entries already live; those go to OnLive instead.
	OnNewVideo func(types.MetadataRecord)
	// OnUpcoming fires for new records that advertise a scheduled start.
	OnUpcoming func(types.MetadataRecord)
	// OnLive fires for new records already live.
	OnLive func(types.MetadataRecord)
	// OnDeauth fires when the poller suspects the session lost its cookies:
	// either DeauthThreshold video IDs vanished in a single cycle, or the
	// membership feed failed DeauthThreshold times in a row. The argument is
	// the count that crossed the threshold.
	OnDeauth func(count int)
}

// Config describes one channel to poll.
type Config struct {
	// ChannelURL is the channel root page, e.g.
	// https://www.youtube.com/channel/UC... or a /@handle URL.
	ChannelURL string
	// Feeds lists the tabs to walk. Empty means DefaultFeeds.
	Feeds []Feed
	// DeauthThreshold overrides DefaultDeauthThreshold when positive.
	DeauthThreshold int
}

// CycleResult is the outcome of one poll cycle.
type CycleResult struct {
	// All is the deduplicated snapshot across every feed, first-sighting
	// order.
	All []types.MetadataRecord
	// New holds records absent from the previous cycle.
	New []types.MetadataRecord
	// Removed holds video IDs present last cycle but gone now.
	Removed []string
	// Duplicates counts cross-feed sightings merged away this cycle.
	Duplicates int
	// FeedErrors maps feeds whose fetch failed to the failure; a cycle
	// with some feeds down still produces a snapshot from the rest.
	FeedErrors map[Feed]error
}

// Poller walks one channel's feeds and tracks the video set across cycles.
// Not safe for concurrent use; the monitor loop owns it.
type Poller struct {
	browser Browser
	log     hclog.Logger
	cfg     Config
	hooks   Hooks

	endpoints        map[Feed]innertube.BrowseEndpoint
	previous         []types.MetadataRecord
	membershipMisses int
}

func NewPoller(browser Browser, cfg Config, hooks Hooks, logger hclog.Logger) *Poller {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if len(cfg.Feeds) == 0 {
		cfg.Feeds = DefaultFeeds
	}
	if cfg.DeauthThreshold <= 0 {
		cfg.DeauthThreshold = DefaultDeauthThreshold
	}
	return &Poller{
		browser: browser,
		log:     logger.Named("poller"),
		cfg:     cfg,
		hooks:   hooks,
	}
}

// Poll runs one cycle: walk every configured feed, dedup, diff against the
// previous cycle, fire hooks for new records. An error is returned only
// when no feed produced anything and the cycle learned nothing.
func (p *Poller) Poll(ctx context.Context) (*CycleResult, error) {
	if p.endpoints == nil {
		if err := p.discoverEndpoints(ctx); err != nil {
			return nil, fmt.Errorf("endpoint discovery: %w", err)
		}
	} else if p.missingFeed() {
		// Tabs appear and disappear (membership in particular), so any
		// unresolved feed triggers one re-discovery per cycle.
		if err := p.discoverEndpoints(ctx); err != nil {
			p.log.Warn("endpoint re-discovery failed", "error", err)
		}
	}

	set := NewDedupSet()
	feedErrs := make(map[Feed]error)
	fetched := 0

	for _, feed := range p.cfg.Feeds {
		ep, ok := p.endpoints[feed]
		if !ok {
			p.log.Debug("feed has no endpoint", "feed", feed)
			continue
		}

		resp, err := p.browser.FetchBrowse(ctx, ep.BrowseID, ep.Params)
		if err != nil {
			feedErrs[feed] = err
			p.log.Warn("feed fetch failed", "feed", feed, "error", err)
			if feed == FeedMembership {
				p.noteMembershipMiss()
			}
			continue
		}
		fetched++
		if feed == FeedMembership {
			p.membershipMisses = 0
		}

		for _, rec := range extractBrowse(resp, feed) {
			set.Add(rec)
		}
	}

	if fetched == 0 {
		return nil, fmt.Errorf("all %d feeds failed", len(p.cfg.Feeds))
	}

	all := set.Records()
	added, removed := Diff(all, p.previous)
	hadPrevious := len(p.previous) > 0
	p.previous = all

	// A pile of IDs vanishing from a stable feed set usually means the
	// session lost its cookies and members-only entries went invisible.
	if hadPrevious && len(removed) >= p.cfg.DeauthThreshold {
		p.log.Warn("many videos vanished in one cycle, cookies may have expired",
			"removed", len(removed), "threshold", p.cfg.DeauthThreshold)
		if p.hooks.OnDeauth != nil {
			p.hooks.OnDeauth(len(removed))
		}
	}

	for _, rec := range added {
		p.log.Info("new video", "video_id", rec.VideoID, "title", rec.Title,
			"live", rec.IsLiveNow, "upcoming", rec.IsUpcoming, "feed", rec.SourceTab)
		if !rec.IsLiveNow && p.hooks.OnNewVideo != nil {
			p.hooks.OnNewVideo(rec)
		}
		if rec.IsUpcoming && p.hooks.OnUpcoming != nil {
			p.hooks.OnUpcoming(rec)
		}
		if rec.IsLiveNow && p.hooks.OnLive != nil {
			p.hooks.OnLive(rec)
		}
	}

	return &CycleResult{
		All:        all,
		New:        added,
		Removed:    removed,
		Duplicates: set.Duplicates(),
		FeedErrors: feedErrs,
	}, nil
}

// Snapshot returns the record set of the last completed cycle.
func (p *Poller) Snapshot() []types.MetadataRecord { return p.previous }

func (p *Poller) missingFeed() bool {
	for _, feed := range p.cfg.Feeds {
		if _, ok := p.endpoints[feed]; !ok {
			return true
		}
	}
	return false
}

func (p *Poller) noteMembershipMiss() {
	p.membershipMisses++
	if p.membershipMisses < p.cfg.DeauthThreshold {
		return
	}
	p.log.Warn("membership feed unreachable, cookies may have expired",
		"consecutive_failures", p.membershipMisses)
	if p.hooks.OnDeauth != nil {
		p.hooks.OnDeauth(p.membershipMisses)
	}
}

// discoverEndpoints fetches the channel root page and maps tab titles to
// their browse endpoints.
func (p *Poller) discoverEndpoints(ctx context.Context) error {
	page, err := p.browser.FetchPage(ctx, p.cfg.ChannelURL)
	if err != nil {
		return err
	}
	if !innertube.PageIsAuthenticated(page) {
		p.log.Debug("not logged in; membership content will be invisible")
	}
	raw, err := innertube.ExtractInitialData(page)
	if err != nil {
		return err
	}
	var br innertube.BrowseResponse
	if err := json.Unmarshal(raw, &br); err != nil {
		return fmt.Errorf("decode initial data: %w", err)
	}

	endpoints := make(map[Feed]innertube.BrowseEndpoint)
	if br.Contents.TwoColumnBrowseResultsRenderer != nil {
		for _, tab := range br.Contents.TwoColumnBrowseResultsRenderer.Tabs {
			tr := tab.TabRenderer
			if tr == nil {
				continue
			}
			if feed, ok := feedFromTitle(tr.Title); ok {
				endpoints[feed] = tr.Endpoint.BrowseEndpoint
			}
		}
	}
	if len(endpoints) == 0 {
		return fmt.Errorf("no known tabs on %s", p.cfg.ChannelURL)
	}

	p.endpoints = endpoints
	p.log.Debug("discovered endpoints", "count", len(endpoints))
	return nil
}

func feedFromTitle(title string) (Feed, bool) {
	switch strings.ToLower(strings.TrimSpace(title)) {
	case "home", "featured":
		return FeedHome, true
	case "videos":
		return FeedVideos, true
	case "live", "streams":
		return FeedLive, true
	case "community", "posts":
		return FeedCommunity, true
	case "membership", "members":
		return FeedMembership, true
	}
	return "", false
}

// extractBrowse pulls records from the selected tab of one browse response.
func extractBrowse(resp *innertube.BrowseResponse, feed Feed) []types.MetadataRecord {
	if resp == nil || resp.Contents.TwoColumnBrowseResultsRenderer == nil {
		return nil
	}
	var out []types.MetadataRecord
	for _, tab := range resp.Contents.TwoColumnBrowseResultsRenderer.Tabs {
		if tab.TabRenderer == nil || !tab.TabRenderer.Selected {
			continue
		}
		out = append(out, extractTab(tab.TabRenderer.Content, feed)...)
	}
	return out
}
