// Package quality picks the video and audio tracks to record from the set
// of descriptors a broadcast advertises. Selection is deterministic: the
// same descriptor set and criteria always yield the same pair, so a restart
// mid-capture re-derives the choice it made before.
package quality

import (
	"fmt"

	"github.com/glubsy/livestream-saver-sub000/internal/formats"
	"github.com/glubsy/livestream-saver-sub000/internal/types"
)

// Criteria narrows the candidate tracks before ranking.
type Criteria struct {
	// MaxHeight is the resolution ceiling in pixels. Zero means unbounded.
	MaxHeight int
	// Container restricts both tracks to one container ("mp4" or "webm").
	// Empty means any container, ranked purely on quality.
	Container string
}

// Selection is the recorded track pair for one capture session.
type Selection struct {
	Video formats.TrackDescriptor
	Audio formats.TrackDescriptor
}

// Select picks the best video track at or under the ceiling and the best
// audio track, honoring the container restriction when one is set. When the
// restriction leaves no viable pair, it is dropped and selection retries
// across all containers rather than failing the capture.
func Select(tracks []formats.TrackDescriptor, c Criteria) (Selection, error) {
	if c.Container != "" {
		sel, err := selectFrom(filterContainer(tracks, c.Container), c.MaxHeight)
		if err == nil {
			return sel, nil
		}
	}
	return selectFrom(tracks, c.MaxHeight)
}

func selectFrom(tracks []formats.TrackDescriptor, maxHeight int) (Selection, error) {
	var videos, audios []formats.TrackDescriptor
	for _, t := range tracks {
		switch {
		case t.HasVideo():
			if maxHeight > 0 && t.Height > maxHeight {
				continue
			}
			videos = append(videos, t)
		case t.HasAudio():
			audios = append(audios, t)
		}
	}
	if len(videos) == 0 || len(audios) == 0 {
		return Selection{}, fmt.Errorf("video=%d audio=%d candidates: %w",
			len(videos), len(audios), types.ErrNoTracksAvailable)
	}

	formats.SortByResolution(videos)
	formats.SortByBitrate(audios)
	return Selection{Video: videos[0], Audio: audios[0]}, nil
}

func filterContainer(tracks []formats.TrackDescriptor, container string) []formats.TrackDescriptor {
	var out []formats.TrackDescriptor
	for _, t := range tracks {
		if t.Container() == container {
			out = append(out, t)
		}
	}
	return out
}
