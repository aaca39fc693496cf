package status

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/glubsy/livestream-saver-sub000/internal/innertube"
	"github.com/glubsy/livestream-saver-sub000/internal/types"
)

// ConditionKind names the noteworthy situation a status update surfaced.
type ConditionKind int

const (
	// CondNone: nothing noteworthy, the flags speak for themselves.
	CondNone ConditionKind = iota
	// CondScheduled: the broadcast advertises a future start time.
	CondScheduled
	// CondStillWaiting: still waiting for a scheduled start that has not
	// materialized yet.
	CondStillWaiting
	// CondWentOffline: a broadcast we saw live is no longer live.
	CondWentOffline
	// CondLoginRequired: upstream demands authentication (members-only or
	// age-restricted content, or cookies went stale).
	CondLoginRequired
	// CondUnplayable: upstream refuses playback for a reason other than
	// authentication.
	CondUnplayable
	// CondOutdatedClient: upstream rejects our client version. Retryable
	// once the client profile is bumped.
	CondOutdatedClient
	// CondFetchFailed: the metadata fetch itself failed.
	CondFetchFailed
	// CondRateLimited: upstream returned a 429-class refusal; back off
	// before asking again.
	CondRateLimited
)

// Condition carries the upstream-facing detail of a status transition so
// callers can log or act on it without re-inspecting the raw response.
type Condition struct {
	Kind           ConditionKind
	Reason         string
	ScheduledStart time.Time // zero unless Kind is CondScheduled or CondStillWaiting
}

func (c Condition) String() string {
	switch c.Kind {
	case CondNone:
		return "none"
	case CondScheduled:
		return "scheduled"
	case CondStillWaiting:
		return "still_waiting"
	case CondWentOffline:
		return "went_offline"
	case CondLoginRequired:
		return "login_required"
	case CondUnplayable:
		return "unplayable"
	case CondOutdatedClient:
		return "outdated_client"
	case CondFetchFailed:
		return "fetch_failed"
	case CondRateLimited:
		return "rate_limited"
	}
	return "unknown"
}

// Update folds one metadata fetch outcome into the previous status. It is a
// pure function of its arguments: no clocks, no I/O, and the same inputs
// always yield the same flags and condition. fetchErr takes precedence over
// resp when both are supplied.
func Update(prev Status, resp *innertube.PlayerResponse, fetchErr error) (Status, Condition) {
	// A failed fetch tells us nothing about the broadcast itself, so only
	// the metadata freshness flag is dropped.
	if fetchErr != nil {
		kind := CondFetchFailed
		if errors.Is(fetchErr, types.ErrRateLimited) {
			kind = CondRateLimited
		}
		return prev.Without(Available), Condition{Kind: kind, Reason: fetchErr.Error()}
	}
	if resp == nil {
		return prev.Without(Available), Condition{Kind: CondFetchFailed, Reason: "empty player response"}
	}

	ps := &resp.PlayabilityStatus
	switch {
	case ps.IsOK():
		return updatePlayable(prev, resp)
	case ps.Status == "LIVE_STREAM_OFFLINE":
		return updateOffline(prev, ps)
	case ps.Status == "LOGIN_REQUIRED":
		// Authentication trouble does not mean the stream went away, so the
		// availability flags survive untouched.
		return prev, Condition{Kind: CondLoginRequired, Reason: ps.Reason}
	case isOutdatedClientReason(ps.Reason):
		return prev, Condition{Kind: CondOutdatedClient, Reason: ps.Reason}
	default:
		// UNPLAYABLE, ERROR and anything new upstream invents.
		return prev, Condition{Kind: CondUnplayable, Reason: ps.Reason}
	}
}

func updatePlayable(prev Status, resp *innertube.PlayerResponse) (Status, Condition) {
	next := prev.With(Available).Without(Offline).Without(Waiting)

	liveNow := resp.VideoDetails.IsLive ||
		resp.Microformat.PlayerMicroformatRenderer.LiveBroadcastDetails.IsLiveNow
	if liveNow {
		next = next.With(Live)
		// Playable and live together mean we are watching the live player.
		next = next.With(ViewedLive)
		return next, Condition{Kind: CondNone}
	}

	// Playable but not live: either a VOD or a broadcast that just ended.
	next = next.Without(Live)
	if prev.Has(Live) {
		return next, Condition{Kind: CondWentOffline}
	}
	return next, Condition{Kind: CondNone}
}

func updateOffline(prev Status, ps *innertube.PlayabilityStatus) (Status, Condition) {
	next := prev.With(Available).With(Offline).Without(Live)

	if unix := ps.ScheduledStartUnix(); unix != "" {
		next = next.With(Waiting)
		start := parseUnix(unix)
		if prev.Has(Waiting) {
			return next, Condition{Kind: CondStillWaiting, Reason: ps.Reason, ScheduledStart: start}
		}
		return next, Condition{Kind: CondScheduled, Reason: ps.Reason, ScheduledStart: start}
	}

	next = next.Without(Waiting)
	if prev.Has(Live) || prev.Has(ViewedLive) {
		return next, Condition{Kind: CondWentOffline, Reason: ps.Reason}
	}
	return next, Condition{Kind: CondNone, Reason: ps.Reason}
}

// isOutdatedClientReason spots the "update your client" style refusal, which
// unlike other unplayable reasons is worth retrying with a newer client
// profile rather than giving up on the broadcast.
func isOutdatedClientReason(reason string) bool {
	r := strings.ToLower(reason)
	return strings.Contains(r, "update your") || strings.Contains(r, "outdated")
}

func parseUnix(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
