package formats

import (
	"sort"
	"strings"
)

// TrackDescriptor is one downloadable encoding of a broadcast track.
type TrackDescriptor struct {
	Itag     int
	URL      string
	MimeType string
	Bitrate  int
	Width    int
	Height   int

	QualityLabel    string
	AudioSampleRate int

	// Ciphered marks descriptors whose URL still needs the resolver
	// collaborator before it is fetchable.
	Ciphered bool

	// SignatureCipher holds the raw cipher blob when Ciphered is set.
	SignatureCipher string

	// TargetDurationSec is the nominal segment length advertised upstream.
	TargetDurationSec float64
}

// HasVideo reports whether the descriptor carries a video track.
func (t TrackDescriptor) HasVideo() bool {
	return strings.HasPrefix(t.MimeType, "video/")
}

// HasAudio reports whether the descriptor carries an audio track.
func (t TrackDescriptor) HasAudio() bool {
	return strings.HasPrefix(t.MimeType, "audio/")
}

// Container returns the container part of the mime type ("mp4", "webm").
func (t TrackDescriptor) Container() string {
	mt := t.MimeType
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	if i := strings.IndexByte(mt, '/'); i >= 0 {
		return strings.TrimSpace(mt[i+1:])
	}
	return ""
}

// SortByResolution orders descriptors best-first: height, then bitrate.
func SortByResolution(tracks []TrackDescriptor) {
	sort.SliceStable(tracks, func(i, j int) bool {
		if tracks[i].Height != tracks[j].Height {
			return tracks[i].Height > tracks[j].Height
		}
		return tracks[i].Bitrate > tracks[j].Bitrate
	})
}

// SortByBitrate orders descriptors best-first by bitrate only.
func SortByBitrate(tracks []TrackDescriptor) {
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].Bitrate > tracks[j].Bitrate
	})
}
