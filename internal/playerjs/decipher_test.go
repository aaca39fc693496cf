package playerjs

import (
	"os"
	"path/filepath"
	"testing"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return string(b)
}

func TestDecipherSignature(t *testing.T) {
	d := NewDecipherer(loadFixture(t, "player_fixture.js"))

	// reverse, swap(1), splice(2)
	got, err := d.DecipherSignature("abcdef")
	if err != nil {
		t.Fatalf("DecipherSignature: %v", err)
	}
	if got != "dcba" {
		t.Fatalf("DecipherSignature = %q, want %q", got, "dcba")
	}
}

func TestDecipherSignatureBracketCalls(t *testing.T) {
	// Some player builds index the op table with strings instead of dots.
	const script = `var Qh={rv:function(a){a.reverse()},
sp:function(a,b){a.splice(0,b)}};
function scramble(a){a=a.split("");Qh["rv"](a,1);Qh["sp"](a,3);return a.join("")}`

	d := NewDecipherer(script)
	got, err := d.DecipherSignature("abcdef")
	if err != nil {
		t.Fatalf("DecipherSignature: %v", err)
	}
	// reverse -> "fedcba", splice(3) -> "cba"
	if got != "cba" {
		t.Fatalf("DecipherSignature = %q, want %q", got, "cba")
	}
}

func TestDecipherN(t *testing.T) {
	d := NewDecipherer(loadFixture(t, "player_fixture.js"))

	got, err := d.DecipherN("12345")
	if err != nil {
		t.Fatalf("DecipherN: %v", err)
	}
	if got != "1345" {
		t.Fatalf("DecipherN = %q, want %q", got, "1345")
	}
}

func TestDecipherMissingRoutines(t *testing.T) {
	d := NewDecipherer("var nothing = true;")
	if _, err := d.DecipherSignature("abc"); err == nil {
		t.Fatalf("expected error for script without signature routine")
	}
	if _, err := d.DecipherN("abc"); err == nil {
		t.Fatalf("expected error for script without n-routine")
	}
}
