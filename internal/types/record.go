package types

import "time"

// MetadataRecord is the normalized candidate-video model produced by the
// channel poller. Identity and equality are defined solely by VideoID;
// every other field may be superseded by a later poll.
type MetadataRecord struct {
	VideoID     string
	Title       string
	Description string

	IsLiveNow   bool
	IsUpcoming  bool
	MembersOnly bool

	// ScheduledStart is set for upcoming broadcasts until they go live.
	ScheduledStart *time.Time

	// SourceTab names the channel feed the record was derived from.
	SourceTab string

	// Extra carries provider-specific fields that have no dedicated slot.
	// Keep this narrow: known keys only, never a dumping ground.
	Extra map[string]string
}

// Same reports whether two records identify the same broadcast.
func (r MetadataRecord) Same(other MetadataRecord) bool {
	return r.VideoID == other.VideoID
}

// WatchURL returns the canonical watch page URL for the record.
func (r MetadataRecord) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + r.VideoID
}
