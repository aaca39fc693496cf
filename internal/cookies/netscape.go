package cookies

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ParseNetscape parses a Netscape cookies.txt stream.
// Format: domain flag path secure expiration name value
func ParseNetscape(r io.Reader) ([]*http.Cookie, error) {
	var out []*http.Cookie
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			continue
		}

		expiresUnix, _ := strconv.ParseInt(parts[4], 10, 64)
		cookie := &http.Cookie{
			Domain: parts[0],
			Path:   parts[2],
			Secure: strings.EqualFold(parts[3], "TRUE"),
			Name:   parts[5],
			Value:  parts[6],
		}
		if expiresUnix > 0 {
			cookie.Expires = time.Unix(expiresUnix, 0)
		}
		out = append(out, cookie)
	}

	return out, scanner.Err()
}

// LoadJar reads a cookies.txt file and returns a jar primed for the given
// site. Expired cookies are dropped; their count is returned so callers can
// warn about a stale session file.
func LoadJar(path, siteURL string) (http.CookieJar, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	parsed, err := ParseNetscape(f)
	if err != nil {
		return nil, 0, fmt.Errorf("parse %s: %w", path, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, 0, err
	}

	site, err := url.Parse(siteURL)
	if err != nil {
		return nil, 0, err
	}

	expired := 0
	now := time.Now()
	fresh := parsed[:0]
	for _, c := range parsed {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			expired++
			continue
		}
		fresh = append(fresh, c)
	}
	jar.SetCookies(site, fresh)

	return jar, expired, nil
}
