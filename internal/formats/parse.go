package formats

import (
	"strconv"

	"github.com/glubsy/livestream-saver-sub000/internal/innertube"
)

// Parse extracts track descriptors from a player response's adaptive
// formats. Progressive (muxed) formats are ignored: live capture always
// records video and audio as separate tracks.
func Parse(resp *innertube.PlayerResponse) []TrackDescriptor {
	if resp == nil {
		return nil
	}

	out := make([]TrackDescriptor, 0, len(resp.StreamingData.AdaptiveFormats))
	for _, f := range resp.StreamingData.AdaptiveFormats {
		cipher := f.SignatureCipher
		if cipher == "" {
			cipher = f.Cipher
		}
		td := TrackDescriptor{
			Itag:              f.Itag,
			URL:               f.URL,
			MimeType:          f.MimeType,
			Bitrate:           f.Bitrate,
			Width:             f.Width,
			Height:            f.Height,
			QualityLabel:      f.QualityLabel,
			SignatureCipher:   cipher,
			Ciphered:          f.URL == "" && cipher != "",
			TargetDurationSec: f.TargetDurationMs,
		}
		if f.AudioSampleRate != "" {
			td.AudioSampleRate, _ = strconv.Atoi(f.AudioSampleRate)
		}
		out = append(out, td)
	}
	return out
}
