package formats

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const masterManifest = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=2000000,RESOLUTION=1280x720,CODECS="avc1.4d401f,mp4a.40.2"
https://example.com/sgoap/x/itag/136/x.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=6000000,RESOLUTION=1920x1080,CODECS="avc1.64002a,mp4a.40.2"
https://example.com/sgoap/x/itag/137/x.m3u8
`

func TestFetchManifestTracks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(masterManifest))
	}))
	defer srv.Close()

	tracks, err := FetchManifestTracks(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("FetchManifestTracks: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}
	if tracks[0].Height != 720 || tracks[0].Itag != 136 {
		t.Fatalf("first track = %+v", tracks[0])
	}
	if tracks[1].Height != 1080 || tracks[1].Itag != 137 {
		t.Fatalf("second track = %+v", tracks[1])
	}
	if tracks[1].Bitrate != 6000000 {
		t.Fatalf("bandwidth = %d", tracks[1].Bitrate)
	}
	if tracks[0].QualityLabel != "720p" {
		t.Fatalf("label = %q", tracks[0].QualityLabel)
	}
}

func TestFetchManifestTracksRejectsMediaPlaylist(t *testing.T) {
	media := "#EXTM3U\n#EXT-X-TARGETDURATION:5\n#EXTINF:5.0,\nseg0.ts\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(media))
	}))
	defer srv.Close()

	if _, err := FetchManifestTracks(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Fatalf("expected error for media playlist")
	}
}
