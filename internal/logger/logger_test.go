package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tc := range tests {
		got, err := ParseLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseLevel(%q): err=%v wantErr=%v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("ParseLevel(%q): got %v want %v", tc.in, got, tc.want)
		}
	}
}

func TestOpenJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := Open(&buf, Config{Level: "info", Format: FormatJSON})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	log.Debug("hidden")
	log.With("component", "profile").Info("registered counter", "module", "features.0")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected exactly one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "registered counter" || rec["component"] != "profile" || rec["module"] != "features.0" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["level"] != "INFO" {
		t.Fatalf("unexpected level: %v", rec["level"])
	}
}

func TestOpenRejectsUnknownSettings(t *testing.T) {
	t.Parallel()

	if _, err := Open(&bytes.Buffer{}, Config{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if _, err := Open(&bytes.Buffer{}, Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestPrettyPlain(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := Open(&buf, Config{Level: "debug", NoColor: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	log.WithGroup("run").Warn("counter not implemented", "module", "blocks.0", "kind", "GELU", "note", "two words")

	out := buf.String()
	if strings.Contains(out, "\033[") {
		t.Fatalf("NoColor output contains escape codes: %q", out)
	}
	for _, want := range []string{"WARN ", "counter not implemented", "run.module=blocks.0", "run.kind=GELU", `run.note="two words"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestPrettyLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	log.Info("quiet")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %q", buf.String())
	}
	log.Error("loud")
	if !strings.Contains(buf.String(), "loud") {
		t.Fatalf("error not written: %q", buf.String())
	}
}

func TestPrettyWithAttrsAndGroupValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)
	h.color = false
	slog.New(h).With("id", "prof_1").Info("done", slog.Group("totals", "ops", 10, "params", 2))

	out := buf.String()
	for _, want := range []string{"id=prof_1", "totals.ops=10", "totals.params=2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := Open(&buf, Config{Format: FormatText})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	FromContext(WithContext(context.Background(), log)).Info("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Fatalf("context logger not used: %q", buf.String())
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext without a logger returned nil")
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	// Must not panic or write anywhere.
	Discard().Error("nothing", "k", 1)
}

func TestNeedsQuoting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"simple", false},
		{"features.0", false},
		{"", true},
		{"has space", true},
		{"tab\there", true},
		{`quote"d`, true},
		{"k=v", true},
	}
	for _, tc := range tests {
		if got := needsQuoting(tc.in); got != tc.want {
			t.Errorf("needsQuoting(%q): got %v want %v", tc.in, got, tc.want)
		}
	}
}
