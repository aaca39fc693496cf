package cookies

import (
	"strings"
	"testing"
)

const sampleCookiesTxt = `# Netscape HTTP Cookie File
# This file is generated by a browser extension.

.youtube.com	TRUE	/	TRUE	9999999999	SID	abc123
.youtube.com	TRUE	/	TRUE	9999999999	HSID	def456
.youtube.com	TRUE	/	FALSE	1	OLD	stale
malformed line without tabs
`

func TestParseNetscape(t *testing.T) {
	cookies, err := ParseNetscape(strings.NewReader(sampleCookiesTxt))
	if err != nil {
		t.Fatalf("ParseNetscape: %v", err)
	}
	if len(cookies) != 3 {
		t.Fatalf("expected 3 cookies, got %d", len(cookies))
	}
	if cookies[0].Name != "SID" || cookies[0].Value != "abc123" {
		t.Fatalf("first cookie = %s=%s, want SID=abc123", cookies[0].Name, cookies[0].Value)
	}
	if !cookies[0].Secure {
		t.Fatalf("SID cookie should be secure")
	}
	if cookies[2].Secure {
		t.Fatalf("OLD cookie should not be secure")
	}
	if cookies[0].Domain != ".youtube.com" {
		t.Fatalf("domain = %q", cookies[0].Domain)
	}
}

func TestParseNetscapeSkipsCommentsAndBlank(t *testing.T) {
	cookies, err := ParseNetscape(strings.NewReader("# only comments\n\n"))
	if err != nil {
		t.Fatalf("ParseNetscape: %v", err)
	}
	if len(cookies) != 0 {
		t.Fatalf("expected no cookies, got %d", len(cookies))
	}
}
