package playerjs

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hashicorp/go-hclog"

	"github.com/glubsy/livestream-saver-sub000/internal/formats"
)

// Resolver produces fetchable URLs for ciphered track descriptors.
type Resolver struct {
	fetcher *Fetcher
	log     hclog.Logger
}

func NewResolver(fetcher *Fetcher, logger hclog.Logger) *Resolver {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Resolver{fetcher: fetcher, log: logger.Named("playerjs")}
}

// ResolveTracks fills in the URL of every ciphered descriptor in place and
// untangles the throttling parameter on all of them. videoID locates the
// player script when at least one descriptor needs deciphering.
func (r *Resolver) ResolveTracks(ctx context.Context, tracks []formats.TrackDescriptor, videoID string) error {
	needed := false
	for _, t := range tracks {
		if t.Ciphered || hasThrottleParam(t.URL) {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}

	path, err := r.fetcher.PlayerPath(ctx, videoID)
	if err != nil {
		return fmt.Errorf("locate player script: %w", err)
	}
	script, err := r.fetcher.Script(ctx, path)
	if err != nil {
		return fmt.Errorf("fetch player script: %w", err)
	}
	dec := NewDecipherer(script)

	for i := range tracks {
		t := &tracks[i]
		if t.Ciphered {
			resolved, err := resolveCipher(dec, t.SignatureCipher)
			if err != nil {
				return fmt.Errorf("itag %d: %w", t.Itag, err)
			}
			t.URL = resolved
			t.Ciphered = false
		}
		if hasThrottleParam(t.URL) {
			fixed, err := fixThrottleParam(dec, t.URL)
			if err != nil {
				// A stale n only throttles; the URL still works.
				r.log.Warn("n-parameter transform failed", "itag", t.Itag, "error", err)
				continue
			}
			t.URL = fixed
		}
	}
	return nil
}

// resolveCipher unpacks a signatureCipher blob (s, sp and url fields) into a
// signed stream URL.
func resolveCipher(dec *Decipherer, cipher string) (string, error) {
	values, err := url.ParseQuery(cipher)
	if err != nil {
		return "", fmt.Errorf("parse cipher: %w", err)
	}
	rawURL := values.Get("url")
	if rawURL == "" {
		return "", fmt.Errorf("cipher has no url field")
	}
	sig, err := dec.DecipherSignature(values.Get("s"))
	if err != nil {
		return "", err
	}
	sigParam := values.Get("sp")
	if sigParam == "" {
		sigParam = "signature"
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(sigParam, sig)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func hasThrottleParam(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Query().Get("n") != ""
}

func fixThrottleParam(dec *Decipherer, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	fixed, err := dec.DecipherN(q.Get("n"))
	if err != nil {
		return "", err
	}
	q.Set("n", fixed)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
