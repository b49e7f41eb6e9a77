package version

import (
	"strings"
	"testing"
)

func TestShortCommit(t *testing.T) {
	t.Parallel()

	if got := shortCommit("abc"); got != "abc" {
		t.Fatalf("short commit changed: %q", got)
	}
	if got := shortCommit("0123456789abcdef"); got != "0123456789ab" {
		t.Fatalf("unexpected truncation: %q", got)
	}
}

func TestResolveAlwaysHasVersion(t *testing.T) {
	t.Parallel()

	info := Resolve()
	if info.Version == "" {
		t.Fatal("empty version")
	}
	if !strings.HasPrefix(info.GoVersion, "go") {
		t.Fatalf("unexpected go version %q", info.GoVersion)
	}
	if !strings.HasPrefix(String(), info.Version) {
		t.Fatalf("String() %q does not start with %q", String(), info.Version)
	}
}
