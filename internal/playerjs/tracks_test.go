package playerjs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/glubsy/livestream-saver-sub000/internal/formats"
)

func playerBackend(t *testing.T) *httptest.Server {
	t.Helper()
	script, err := os.ReadFile(filepath.Join("testdata", "player_fixture.js"))
	if err != nil {
		t.Fatal(err)
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			// Escaped-slash form as it appears inside ytcfg JSON.
			w.Write([]byte(`ytcfg.set({"PLAYER_JS_URL":"\/s\/player\/fix123\/player_ias.vflset\/en_US\/base.js"});`))
		case "/s/player/fix123/player_ias.vflset/en_US/base.js":
			w.Write(script)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestResolveTracks(t *testing.T) {
	srv := playerBackend(t)
	defer srv.Close()

	fetcher := NewFetcher(srv.Client(), NewMemoryCache())
	fetcher.BaseURL = srv.URL
	resolver := NewResolver(fetcher, nil)

	cipher := url.Values{
		"s":   {"abcdef"},
		"sp":  {"sig"},
		"url": {"https://cdn.example.com/videoplayback?itag=137&n=12345"},
	}.Encode()

	tracks := []formats.TrackDescriptor{
		{Itag: 137, MimeType: "video/mp4", Ciphered: true, SignatureCipher: cipher},
		{Itag: 140, MimeType: "audio/mp4", URL: "https://cdn.example.com/videoplayback?itag=140&n=12345"},
	}

	if err := resolver.ResolveTracks(context.Background(), tracks, "vidX"); err != nil {
		t.Fatalf("ResolveTracks: %v", err)
	}

	if tracks[0].Ciphered {
		t.Fatalf("descriptor still marked ciphered")
	}
	u, err := url.Parse(tracks[0].URL)
	if err != nil {
		t.Fatal(err)
	}
	if got := u.Query().Get("sig"); got != "dcba" {
		t.Fatalf("sig = %q, want dcba", got)
	}
	if got := u.Query().Get("n"); got != "1345" {
		t.Fatalf("video n = %q, want 1345", got)
	}

	u, err = url.Parse(tracks[1].URL)
	if err != nil {
		t.Fatal(err)
	}
	if got := u.Query().Get("n"); got != "1345" {
		t.Fatalf("audio n = %q, want 1345", got)
	}
}

func TestResolveTracksNoWorkNeeded(t *testing.T) {
	// Clear URLs without throttling params must not touch the network.
	resolver := NewResolver(NewFetcher(&http.Client{Transport: failingTransport{}}, nil), nil)
	tracks := []formats.TrackDescriptor{
		{Itag: 137, URL: "https://cdn.example.com/videoplayback?itag=137"},
	}
	if err := resolver.ResolveTracks(context.Background(), tracks, "vidX"); err != nil {
		t.Fatalf("ResolveTracks: %v", err)
	}
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, http.ErrHandlerTimeout
}

func TestFetcherCachesByPlayerID(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("js-body"))
	}))
	defer srv.Close()

	fetcher := NewFetcher(srv.Client(), NewMemoryCache())
	fetcher.BaseURL = srv.URL

	for i := 0; i < 3; i++ {
		body, err := fetcher.Script(context.Background(), "/s/player/abc999/player_ias.vflset/en_US/base.js")
		if err != nil {
			t.Fatalf("Script: %v", err)
		}
		if body != "js-body" {
			t.Fatalf("body = %q", body)
		}
	}
	if hits != 1 {
		t.Fatalf("backend hit %d times, want 1", hits)
	}
}
