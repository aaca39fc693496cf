package quality

import (
	"errors"
	"testing"

	"github.com/glubsy/livestream-saver-sub000/internal/formats"
	"github.com/glubsy/livestream-saver-sub000/internal/types"
)

func candidateTracks() []formats.TrackDescriptor {
	return []formats.TrackDescriptor{
		{Itag: 137, MimeType: `video/mp4; codecs="avc1.64002a"`, Height: 1080, Bitrate: 4500000},
		{Itag: 136, MimeType: `video/mp4; codecs="avc1.4d401f"`, Height: 720, Bitrate: 2500000},
		{Itag: 135, MimeType: `video/mp4; codecs="avc1.4d401e"`, Height: 480, Bitrate: 1200000},
		{Itag: 248, MimeType: `video/webm; codecs="vp9"`, Height: 1080, Bitrate: 4000000},
		{Itag: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, Bitrate: 144000},
		{Itag: 251, MimeType: `audio/webm; codecs="opus"`, Bitrate: 160000},
	}
}

func TestSelectBest(t *testing.T) {
	sel, err := Select(candidateTracks(), Criteria{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Video.Itag != 137 {
		t.Fatalf("video itag = %d, want 137", sel.Video.Itag)
	}
	if sel.Audio.Itag != 251 {
		t.Fatalf("audio itag = %d, want 251", sel.Audio.Itag)
	}
}

func TestSelectResolutionCeiling(t *testing.T) {
	sel, err := Select(candidateTracks(), Criteria{MaxHeight: 480})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Video.Itag != 135 || sel.Video.Height != 480 {
		t.Fatalf("video = itag %d height %d, want 135/480", sel.Video.Itag, sel.Video.Height)
	}
}

func TestSelectContainerRestriction(t *testing.T) {
	sel, err := Select(candidateTracks(), Criteria{Container: "mp4"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Video.Itag != 137 || sel.Audio.Itag != 140 {
		t.Fatalf("selection = %d/%d, want 137/140", sel.Video.Itag, sel.Audio.Itag)
	}
}

func TestSelectContainerFallback(t *testing.T) {
	// No webm audio in the set: restriction to webm cannot produce a pair,
	// so selection falls back across containers rather than failing.
	tracks := []formats.TrackDescriptor{
		{Itag: 137, MimeType: `video/mp4; codecs="avc1"`, Height: 1080, Bitrate: 4500000},
		{Itag: 140, MimeType: `audio/mp4; codecs="mp4a"`, Bitrate: 144000},
	}
	sel, err := Select(tracks, Criteria{Container: "webm"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Video.Itag != 137 || sel.Audio.Itag != 140 {
		t.Fatalf("fallback selection = %d/%d", sel.Video.Itag, sel.Audio.Itag)
	}
}

func TestSelectNoTracks(t *testing.T) {
	_, err := Select(nil, Criteria{})
	if !errors.Is(err, types.ErrNoTracksAvailable) {
		t.Fatalf("err = %v, want ErrNoTracksAvailable", err)
	}
}

func TestSelectDeterministic(t *testing.T) {
	a, _ := Select(candidateTracks(), Criteria{MaxHeight: 720})
	b, _ := Select(candidateTracks(), Criteria{MaxHeight: 720})
	if a.Video.Itag != b.Video.Itag || a.Audio.Itag != b.Audio.Itag {
		t.Fatalf("selection not deterministic: %+v vs %+v", a, b)
	}
}

func TestCompare(t *testing.T) {
	mp4 := Selection{
		Video: formats.TrackDescriptor{Itag: 137, MimeType: "video/mp4"},
		Audio: formats.TrackDescriptor{Itag: 140, MimeType: "audio/mp4"},
	}

	if err := Compare(mp4, mp4, false); err != nil {
		t.Fatalf("identical selections: %v", err)
	}

	lower := mp4
	lower.Video.Itag = 136
	err := Compare(mp4, lower, false)
	var changed *ErrSelectionChanged
	if !errors.As(err, &changed) || changed.Fatal {
		t.Fatalf("itag change: err = %v", err)
	}
	if err := Compare(mp4, lower, true); err != nil {
		t.Fatalf("itag change should be ignorable: %v", err)
	}

	webm := mp4
	webm.Video.MimeType = "video/webm"
	err = Compare(mp4, webm, true)
	if !errors.As(err, &changed) || !changed.Fatal {
		t.Fatalf("container change must be fatal even when ignoring quality: %v", err)
	}
}
