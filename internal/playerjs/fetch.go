package playerjs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

var (
	// Matches the base.js path on a watch page, tolerating the JSON-escaped
	// form inside ytcfg blobs.
	playerPathPattern = regexp.MustCompile(`(/s/player/[A-Za-z0-9_-]+/[A-Za-z0-9._/-]*base\.js)`)
	playerIDPattern   = regexp.MustCompile(`^/s/player/([A-Za-z0-9_-]+)/`)
)

// Fetcher locates and downloads the player script for a broadcast.
type Fetcher struct {
	Client  *http.Client
	Cache   Cache
	BaseURL string // default https://www.youtube.com
}

func NewFetcher(client *http.Client, cache Cache) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Fetcher{Client: client, Cache: cache}
}

func (f *Fetcher) base() string {
	if f.BaseURL != "" {
		return strings.TrimRight(f.BaseURL, "/")
	}
	return "https://www.youtube.com"
}

// PlayerPath scrapes a watch page for the current player script path.
func (f *Fetcher) PlayerPath(ctx context.Context, videoID string) (string, error) {
	body, err := f.get(ctx, f.base()+"/watch?v="+videoID)
	if err != nil {
		return "", err
	}
	m := playerPathPattern.FindString(strings.ReplaceAll(body, `\/`, "/"))
	if m == "" {
		return "", fmt.Errorf("player script path not found on watch page")
	}
	return m, nil
}

// Script fetches the player script body at the given path, serving repeat
// requests for the same player ID from cache.
func (f *Fetcher) Script(ctx context.Context, playerPath string) (string, error) {
	key := playerPath
	if m := playerIDPattern.FindStringSubmatch(playerPath); len(m) > 1 {
		key = m[1]
	}
	if body, ok := f.Cache.Get(key); ok {
		return body, nil
	}

	url := playerPath
	if !strings.HasPrefix(url, "http") {
		url = f.base() + playerPath
	}
	body, err := f.get(ctx, url)
	if err != nil {
		return "", err
	}
	f.Cache.Set(key, body)
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status=%d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
