package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

const normSpec = `
name: norm
layers:
  - kind: BatchNorm2d
    name: bn
    features: 2
`

type ckptTensor struct {
	name  string
	dtype string
	shape []int64
	size  int
}

// writeSafetensors writes zero-filled tensors in safetensors layout.
func writeSafetensors(t *testing.T, path string, tensors []ckptTensor) {
	t.Helper()
	header := make(map[string]any, len(tensors))
	var off int
	for _, tt := range tensors {
		header[tt.name] = map[string]any{
			"dtype":        tt.dtype,
			"shape":        tt.shape,
			"data_offsets": []int{off, off + tt.size},
		}
		off += tt.size
	}
	hb, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	var out bytes.Buffer
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(hb)))
	out.Write(lenBuf[:])
	out.Write(hb)
	out.Write(make([]byte, off))
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestCountCheckpoint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tinyPath := filepath.Join(dir, "tiny.yaml")
	normPath := filepath.Join(dir, "norm.yaml")
	for path, body := range map[string]string{tinyPath: tinySpec, normPath: normSpec} {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write spec: %v", err)
		}
	}

	linear := []ckptTensor{
		{"0.weight", "F32", []int64{4, 8}, 128},
		{"0.bias", "F32", []int64{4}, 16},
	}
	norm := []ckptTensor{
		{"bn.weight", "F32", []int64{2}, 8},
		{"bn.bias", "F32", []int64{2}, 8},
		{"bn.running_mean", "F32", []int64{2}, 8},
		{"bn.running_var", "F32", []int64{2}, 8},
		{"bn.num_batches_tracked", "I64", []int64{}, 8},
	}

	tests := []struct {
		name     string
		tensors  []ckptTensor
		spec     string
		complete bool
		want     []string
	}{
		{
			name:     "totals only",
			tensors:  linear,
			complete: true,
			want:     []string{"tensors: 2", "params:  36 (36)", "F32      2 tensors, 36 params, 144 bytes"},
		},
		{
			name:     "container root counts its children",
			tensors:  linear,
			spec:     tinyPath,
			complete: true,
			want:     []string{"Model: tiny (36 params)", "loaded:     2", "missing:    0"},
		},
		{
			name:    "missing bias",
			tensors: linear[:1],
			spec:    tinyPath,
			want:    []string{"Model: tiny (36 params)", "missing:    1", "    0.bias"},
		},
		{
			name:    "renamed tensor",
			tensors: []ckptTensor{linear[0], {"head.bias", "F32", []int64{4}, 16}},
			spec:    tinyPath,
			want:    []string{"missing:    1", "unexpected: 1", "    head.bias"},
		},
		{
			name:     "batchnorm buffers",
			tensors:  norm,
			spec:     normPath,
			complete: true,
			want:     []string{"Model: norm (4 params)", "loaded:     2", "buffers:    3", "unexpected: 0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "model.safetensors")
			writeSafetensors(t, path, tt.tensors)

			var targets []target
			if tt.spec != "" {
				var err error
				targets, err = resolveTargets(nil, []string{tt.spec}, "", false)
				if err != nil {
					t.Fatalf("resolveTargets: %v", err)
				}
			}

			var buf bytes.Buffer
			complete, err := countCheckpoint(&buf, path, targets)
			if err != nil {
				t.Fatalf("countCheckpoint: %v", err)
			}
			out := buf.String()
			if complete != tt.complete {
				t.Errorf("complete = %v, want %v\n%s", complete, tt.complete, out)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestCountCheckpointErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	specPath := filepath.Join(dir, "tiny.yaml")
	if err := os.WriteFile(specPath, []byte(tinySpec), 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	targets, err := resolveTargets(nil, []string{specPath, specPath}, "", false)
	if err != nil {
		t.Fatalf("resolveTargets: %v", err)
	}

	if _, err := countCheckpoint(&bytes.Buffer{}, filepath.Join(dir, "absent.safetensors"), nil); err == nil {
		t.Error("expected error for a missing checkpoint")
	}
	if _, err := countCheckpoint(&bytes.Buffer{}, filepath.Join(dir, "model.safetensors"), targets); err == nil {
		t.Error("expected error for two comparison targets")
	}
	if _, err := countCheckpoint(&bytes.Buffer{}, filepath.Join(dir, "model.gguf"), targets[:1]); err == nil {
		t.Error("expected error comparing a model with a GGUF file")
	}
}
