package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/samcharles93/opcount/internal/zoo"
	"github.com/samcharles93/opcount/pkg/nn"
)

const tinySpec = `
name: tiny
layers:
  - kind: Linear
    in: 8
    out: 4
  - kind: ReLU
`

func TestResolveTargets(t *testing.T) {
	t.Parallel()

	specPath := filepath.Join(t.TempDir(), "tiny.yaml")
	if err := os.WriteFile(specPath, []byte(tinySpec), 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}

	t.Run("zoo defaults", func(t *testing.T) {
		t.Parallel()
		targets, err := resolveTargets([]string{"lenet5", "resnet18"}, nil, "", true)
		if err != nil {
			t.Fatalf("resolveTargets: %v", err)
		}
		got := map[string]nn.Shape{}
		for _, tg := range targets {
			got[tg.name] = tg.input
		}
		want := map[string]nn.Shape{
			"lenet5":   {1, 1, 28, 28},
			"resnet18": {1, 3, 224, 224},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("inputs mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("override applies to every target", func(t *testing.T) {
		t.Parallel()
		targets, err := resolveTargets([]string{"mlp"}, []string{specPath}, "2x8", true)
		if err != nil {
			t.Fatalf("resolveTargets: %v", err)
		}
		if len(targets) != 2 || targets[1].name != "tiny" {
			t.Fatalf("unexpected targets: %+v", targets)
		}
		for _, tg := range targets {
			if !tg.input.Equal(nn.Shape{2, 8}) {
				t.Fatalf("%s: input %v", tg.name, tg.input)
			}
		}
		m, err := targets[1].build()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if n := nn.NumParams(m); n != 36 {
			t.Fatalf("params: got %d want 36", n)
		}
	})

	t.Run("spec without input", func(t *testing.T) {
		t.Parallel()
		if _, err := resolveTargets(nil, []string{specPath}, "", true); err == nil {
			t.Fatal("expected an error for a spec without an input shape")
		}
	})

	t.Run("input optional when counting params", func(t *testing.T) {
		t.Parallel()
		targets, err := resolveTargets(nil, []string{specPath}, "", false)
		if err != nil {
			t.Fatalf("resolveTargets: %v", err)
		}
		if len(targets) != 1 || targets[0].input != nil {
			t.Fatalf("unexpected targets: %+v", targets)
		}
	})

	t.Run("unknown model", func(t *testing.T) {
		t.Parallel()
		_, err := resolveTargets([]string{"resnet1000"}, nil, "", true)
		if !errors.Is(err, zoo.ErrUnknownModel) {
			t.Fatalf("expected ErrUnknownModel, got %v", err)
		}
	})

	t.Run("bad input", func(t *testing.T) {
		t.Parallel()
		_, err := resolveTargets([]string{"mlp"}, nil, "1,-3", true)
		if !errors.Is(err, nn.ErrInvalidShape) {
			t.Fatalf("expected ErrInvalidShape, got %v", err)
		}
	})

	t.Run("nothing selected", func(t *testing.T) {
		t.Parallel()
		if _, err := resolveTargets(nil, nil, "1,3", true); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("fresh instances", func(t *testing.T) {
		t.Parallel()
		targets, err := resolveTargets([]string{"mlp"}, nil, "", true)
		if err != nil {
			t.Fatalf("resolveTargets: %v", err)
		}
		a, _ := targets[0].build()
		b, _ := targets[0].build()
		if a == b {
			t.Fatal("build returned the same instance twice")
		}
	})
}
