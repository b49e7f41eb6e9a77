package main

import (
	"context"
	"errors"
	"testing"

	"github.com/samcharles93/opcount/internal/logger"
	"github.com/samcharles93/opcount/pkg/nn"
	"github.com/samcharles93/opcount/pkg/profile"
)

func TestRunTarget(t *testing.T) {
	t.Parallel()

	targets, err := resolveTargets([]string{"lenet5"}, nil, "", true)
	if err != nil {
		t.Fatalf("resolveTargets: %v", err)
	}
	res, err := runTarget(context.Background(), logger.Discard(), targets[0], "", profile.Options{Quiet: true})
	if err != nil {
		t.Fatalf("runTarget: %v", err)
	}
	if res.Ops != 494138 || res.Params != 61706 {
		t.Fatalf("got ops=%d params=%d", res.Ops, res.Params)
	}
}

func TestRunTargetShapeMismatch(t *testing.T) {
	t.Parallel()

	targets, err := resolveTargets([]string{"lenet5"}, nil, "1,3,28,28", true)
	if err != nil {
		t.Fatalf("resolveTargets: %v", err)
	}
	_, err = runTarget(context.Background(), logger.Discard(), targets[0], "", profile.Options{Quiet: true})
	if !errors.Is(err, nn.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestRunTargetMissingWeights(t *testing.T) {
	t.Parallel()

	targets, err := resolveTargets([]string{"mlp"}, nil, "", true)
	if err != nil {
		t.Fatalf("resolveTargets: %v", err)
	}
	_, err = runTarget(context.Background(), logger.Discard(), targets[0], t.TempDir()+"/none.safetensors", profile.Options{Quiet: true})
	if err == nil {
		t.Fatal("expected an error for a missing checkpoint")
	}
}
