package formats

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
)

var itagPathPattern = regexp.MustCompile(`/itag/(\d+)/`)

// FetchManifestTracks derives track descriptors from the live HLS master
// manifest. This is the fallback source for streams where the player
// response ships an empty adaptive format list (a known upstream defect at
// very high resolutions); the manifest advertises the same encodings.
func FetchManifestTracks(ctx context.Context, client *http.Client, manifestURL string) ([]TrackDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest fetch failed: status=%d", resp.StatusCode)
	}

	playlist, listType, err := m3u8.DecodeFrom(resp.Body, true)
	if err != nil {
		return nil, fmt.Errorf("manifest parse failed: %w", err)
	}
	if listType != m3u8.MASTER {
		return nil, fmt.Errorf("expected master playlist at %s", manifestURL)
	}
	master, ok := playlist.(*m3u8.MasterPlaylist)
	if !ok {
		return nil, fmt.Errorf("unexpected playlist type")
	}

	return tracksFromMaster(master), nil
}

func tracksFromMaster(master *m3u8.MasterPlaylist) []TrackDescriptor {
	var out []TrackDescriptor
	seenAudio := map[string]bool{}

	for _, v := range master.Variants {
		if v == nil {
			continue
		}

		td := TrackDescriptor{
			URL:      v.URI,
			Bitrate:  int(v.Bandwidth),
			MimeType: mimeFromCodecs(v.Codecs, true),
			Itag:     itagFromURI(v.URI),
		}
		if w, h, ok := parseResolution(v.Resolution); ok {
			td.Width, td.Height = w, h
			td.QualityLabel = fmt.Sprintf("%dp", h)
		}
		out = append(out, td)

		// Audio renditions hang off the variant as alternatives.
		for _, alt := range v.Alternatives {
			if alt == nil || alt.Type != "AUDIO" || alt.URI == "" || seenAudio[alt.URI] {
				continue
			}
			seenAudio[alt.URI] = true
			out = append(out, TrackDescriptor{
				URL:      alt.URI,
				MimeType: "audio/mp4; codecs=\"mp4a.40.2\"",
				Itag:     itagFromURI(alt.URI),
			})
		}
	}
	return out
}

func mimeFromCodecs(codecs string, video bool) string {
	kind := "video"
	if !video {
		kind = "audio"
	}
	container := "mp4"
	if strings.Contains(codecs, "vp09") || strings.Contains(codecs, "vp9") {
		container = "webm"
	}
	if codecs == "" {
		return kind + "/" + container
	}
	return fmt.Sprintf("%s/%s; codecs=%q", kind, container, codecs)
}

func itagFromURI(uri string) int {
	m := itagPathPattern.FindStringSubmatch(uri)
	if len(m) < 2 {
		return 0
	}
	itag, _ := strconv.Atoi(m[1])
	return itag
}

func parseResolution(res string) (int, int, bool) {
	parts := strings.SplitN(res, "x", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return w, h, true
}
