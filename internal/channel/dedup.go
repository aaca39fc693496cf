// Package channel polls a creator's public tabs for new, upcoming and live
// broadcasts. One poll cycle walks every configured feed, merges the videos
// each feed advertises into a deduplicated snapshot, and diffs the snapshot
// against the previous cycle.
package channel

import "github.com/glubsy/livestream-saver-sub000/internal/types"

// DedupSet accumulates the records of one poll cycle. The same video
// routinely appears on several feeds (home and videos, or live and
// membership); identity is the video ID, and later sightings merge into the
// first rather than replacing it.
type DedupSet struct {
	order      []string
	records    map[string]types.MetadataRecord
	duplicates int
}

func NewDedupSet() *DedupSet {
	return &DedupSet{records: make(map[string]types.MetadataRecord)}
}

// Add inserts a record, merging it into an existing entry when the video ID
// was already seen this cycle. Returns false for such duplicate sightings.
func (d *DedupSet) Add(rec types.MetadataRecord) bool {
	if rec.VideoID == "" {
		return false
	}
	existing, ok := d.records[rec.VideoID]
	if !ok {
		d.order = append(d.order, rec.VideoID)
		d.records[rec.VideoID] = rec
		return true
	}
	d.duplicates++
	d.records[rec.VideoID] = merge(existing, rec)
	return false
}

// Records returns the cycle's snapshot in first-sighting order.
func (d *DedupSet) Records() []types.MetadataRecord {
	out := make([]types.MetadataRecord, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.records[id])
	}
	return out
}

// Duplicates counts sightings that merged into an existing record.
func (d *DedupSet) Duplicates() int { return d.duplicates }

// merge folds a later sighting into the first one. Booleans accumulate (a
// feed that knows the video is live outranks one that does not), strings
// keep the first non-empty value.
func merge(first, later types.MetadataRecord) types.MetadataRecord {
	out := first
	out.IsLiveNow = first.IsLiveNow || later.IsLiveNow
	out.IsUpcoming = first.IsUpcoming || later.IsUpcoming
	out.MembersOnly = first.MembersOnly || later.MembersOnly
	if out.Title == "" {
		out.Title = later.Title
	}
	if out.Description == "" {
		out.Description = later.Description
	}
	if out.ScheduledStart == nil {
		out.ScheduledStart = later.ScheduledStart
	}
	for k, v := range later.Extra {
		if out.Extra == nil {
			out.Extra = make(map[string]string)
		}
		if _, ok := out.Extra[k]; !ok {
			out.Extra[k] = v
		}
	}
	return out
}

// Diff compares a cycle snapshot against the previous one and returns the
// records that appeared and the video IDs that vanished. Order follows the
// input slices.
func Diff(current, previous []types.MetadataRecord) (added []types.MetadataRecord, removed []string) {
	prev := make(map[string]struct{}, len(previous))
	for _, r := range previous {
		prev[r.VideoID] = struct{}{}
	}
	cur := make(map[string]struct{}, len(current))
	for _, r := range current {
		cur[r.VideoID] = struct{}{}
		if _, ok := prev[r.VideoID]; !ok {
			added = append(added, r)
		}
	}
	for _, r := range previous {
		if _, ok := cur[r.VideoID]; !ok {
			removed = append(removed, r.VideoID)
		}
	}
	return added, removed
}
