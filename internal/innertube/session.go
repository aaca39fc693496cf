package innertube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"regexp"

	"github.com/hashicorp/go-hclog"

	"github.com/glubsy/livestream-saver-sub000/internal/types"
)

var (
	initialDataPattern = regexp.MustCompile(`(?s)var ytInitialData\s*=\s*(\{.+?\});\s*</script>`)
	apiKeyPattern      = regexp.MustCompile(`(?i)["']INNERTUBE_API_KEY["']\s*:\s*["']([^"']+)["']`)
	loggedInPattern    = regexp.MustCompile(`(?i)["']LOGGED_IN["']\s*:\s*(true|false)`)
)

// Session is the HTTP/cookie layer shared by the poller and the status
// tracker. Cookies ride on the underlying client's jar; the session itself
// is stateless beyond the resolved API key.
type Session struct {
	HTTPClient *http.Client
	Profile    ClientProfile
	Logger     hclog.Logger

	// APIKey overrides the profile key when the watch page advertised one.
	APIKey string
}

// NewSession wires a session around an HTTP client. A nil client falls back
// to http.DefaultClient; a nil logger is replaced with a null logger.
func NewSession(httpClient *http.Client, logger hclog.Logger) *Session {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Session{
		HTTPClient: httpClient,
		Profile:    WebClient,
		Logger:     logger.Named("session"),
	}
}

// FetchPage retrieves a provider HTML page with the session's cookies and
// client headers applied.
func (s *Session) FetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.Profile.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("fetch %s: %w", pageURL, types.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status=%d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if key := apiKeyPattern.FindSubmatch(body); len(key) > 1 {
		s.APIKey = string(key[1])
	}
	return string(body), nil
}

// FetchAPI posts a payload to a youtubei/v1 endpoint and returns the raw
// JSON response body.
func (s *Session) FetchAPI(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	apiKey := s.APIKey
	if apiKey == "" {
		apiKey = s.Profile.APIKey
	}
	url := "https://" + s.Profile.Host + "/youtubei/v1/" + endpoint
	if apiKey != "" {
		url += "?key=" + neturl.QueryEscape(apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.Profile.UserAgent)
	req.Header.Set("Origin", "https://"+s.Profile.Host)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("api %s: %w", endpoint, types.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api %s: status=%d", endpoint, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// IsAuthenticated reports whether an API response indicates a logged-in
// session. Absence of the marker is treated as logged out.
func (s *Session) IsAuthenticated(raw json.RawMessage) bool {
	var probe struct {
		ResponseContext ResponseContext `json:"responseContext"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return !probe.ResponseContext.MainAppWebResponseContext.LoggedOut
}

// PageIsAuthenticated inspects an HTML page's embedded config for the
// LOGGED_IN marker.
func PageIsAuthenticated(page string) bool {
	m := loggedInPattern.FindStringSubmatch(page)
	return len(m) > 1 && m[1] == "true"
}

// ExtractInitialData pulls the ytInitialData JSON blob out of a tab page.
func ExtractInitialData(page string) (json.RawMessage, error) {
	m := initialDataPattern.FindStringSubmatch(page)
	if len(m) < 2 {
		return nil, fmt.Errorf("ytInitialData not found in page")
	}
	return json.RawMessage(m[1]), nil
}

// FetchPlayerResponse fetches and decodes fresh player metadata for one
// video. The decoded response is raw material for the status tracker; no
// classification happens here.
func (s *Session) FetchPlayerResponse(ctx context.Context, videoID string) (*PlayerResponse, error) {
	raw, err := s.FetchAPI(ctx, "player", NewPlayerRequest(s.Profile, videoID))
	if err != nil {
		return nil, err
	}
	var pr PlayerResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}
	return &pr, nil
}

// FetchBrowse fetches and decodes one channel tab.
func (s *Session) FetchBrowse(ctx context.Context, browseID, params string) (*BrowseResponse, error) {
	raw, err := s.FetchAPI(ctx, "browse", NewBrowseRequest(s.Profile, browseID, params))
	if err != nil {
		return nil, err
	}
	var br BrowseResponse
	if err := json.Unmarshal(raw, &br); err != nil {
		return nil, fmt.Errorf("decode browse response: %w", err)
	}
	return &br, nil
}
