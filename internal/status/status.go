// Package status classifies a broadcast's playability from freshly fetched
// player metadata. The classification is a bitset of independent flags, not
// a single enum: upstream playability signals are multi-valued, and several
// can hold at once (e.g. a stream can be known-live while its metadata is
// momentarily unavailable).
package status

import "strings"

// Status is the set of availability flags for one tracked broadcast.
type Status uint8

const (
	// Offline: upstream reports the broadcast is not currently live.
	Offline Status = 1 << iota
	// Available: the last metadata fetch succeeded and was playable.
	Available
	// Live: upstream reports an ongoing live broadcast.
	Live
	// ViewedLive: we have observed the live player at least once; used to
	// distinguish a stream that ended from one that never started.
	ViewedLive
	// Waiting: a future scheduled start time is advertised.
	Waiting
)

// OK is the derived composite predicate: metadata is fresh, the stream is
// live, and we have confirmed the live player.
func (s Status) OK() bool {
	return s.Has(Available) && s.Has(Live) && s.Has(ViewedLive)
}

func (s Status) Has(flag Status) bool { return s&flag != 0 }

func (s Status) With(flag Status) Status { return s | flag }

func (s Status) Without(flag Status) Status { return s &^ flag }

func (s Status) String() string {
	if s == 0 {
		return "none"
	}
	var parts []string
	for _, f := range []struct {
		bit  Status
		name string
	}{
		{Offline, "offline"},
		{Available, "available"},
		{Live, "live"},
		{ViewedLive, "viewed_live"},
		{Waiting, "waiting"},
	} {
		if s.Has(f.bit) {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}
