package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/samcharles93/opcount/internal/version"
	"github.com/samcharles93/opcount/pkg/profile"
)

func TestWriteVersion(t *testing.T) {
	t.Parallel()

	info := version.Info{Version: "v1.2.0", Commit: "0123456789abcdef", GoVersion: "go1.26.0"}
	counters := len(profile.DefaultRegistry())

	t.Run("text", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		if err := writeVersion(&buf, info, false); err != nil {
			t.Fatalf("writeVersion: %v", err)
		}
		out := buf.String()
		for _, want := range []string{"opcount v1.2.0\n", "commit:   0123456789abcdef", "go:       go1.26.0"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		if strings.Contains(out, "built:") {
			t.Errorf("empty build time printed:\n%s", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		if err := writeVersion(&buf, info, true); err != nil {
			t.Fatalf("writeVersion: %v", err)
		}
		var got map[string]any
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v\n%s", err, buf.String())
		}
		want := map[string]any{
			"version":    "v1.2.0",
			"commit":     "0123456789abcdef",
			"go_version": "go1.26.0",
			"counters":   float64(counters),
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("json mismatch (-want +got):\n%s", diff)
		}
	})
}
