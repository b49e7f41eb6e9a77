// Package profile counts the operations and parameters of an nn model by
// instrumenting its leaf modules and running a single forward pass.
package profile

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/samcharles93/opcount/internal/logger"
	"github.com/samcharles93/opcount/pkg/nn"
)

var ErrNilModel = errors.New("profile: nil model")

// Logger receives registration notices and warnings about modules without a
// counter. Both *slog.Logger and the internal logger satisfy it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Options tune a Profile run. The zero value profiles with the built-in
// counters on a meta input.
type Options struct {
	// CustomOps override or extend the built-in counters by kind.
	CustomOps Registry
	// Quiet suppresses the per-module registration notices. Warnings are
	// still logged.
	Quiet bool
	// Materialize runs the forward pass on real zero-filled data. Parameters
	// without data are initialised from Seed for the run and released after.
	Materialize bool
	Seed        int64
	// Logger defaults to the logger carried by the context.
	Logger Logger
}

// Profile attaches a counter to every leaf module of model, runs one forward
// pass on a zero input of the given shape and returns the summed counts.
//
// The model is returned to its previous state whether or not the pass
// succeeds: hooks are removed, training flags restored and temporarily
// materialized parameters released. Profiling the same model from several
// goroutines at once is not supported.
func Profile(ctx context.Context, model nn.Module, input nn.Shape, opts Options) (*Result, error) {
	if model == nil {
		return nil, ErrNilModel
	}
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("profile input: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = logger.FromContext(ctx)
	}
	registry := DefaultRegistry().Merge(opts.CustomOps)

	modes := make(map[nn.Module]bool)
	nn.Walk(model, func(_ string, m nn.Module) { modes[m] = m.Training() })
	defer func() {
		for m, training := range modes {
			m.SetTraining(training)
		}
	}()
	nn.SetTraining(model, false)

	var handles []*nn.HookHandle
	defer func() {
		for _, h := range handles {
			h.Remove()
		}
	}()

	var (
		stats       []*LayerStat
		unsupported = make(map[nn.Kind]bool)
	)
	for _, leaf := range nn.Leaves(model) {
		m := leaf.Module
		stat := &LayerStat{
			Path:   leaf.Path,
			Kind:   m.Kind(),
			Params: params(m),
		}
		stats = append(stats, stat)

		fn, known := registry[m.Kind()]
		if !known {
			log.Warn("counter not implemented", "module", displayPath(leaf.Path), "kind", m.Kind())
			unsupported[m.Kind()] = true
			continue
		}
		if fn == nil {
			continue
		}

		stat.Counted = true
		handles = append(handles, m.Hooks().Register(func(m nn.Module, in, out *nn.Tensor) {
			ops, p := fn(m, in.Shape, out.Shape)
			stat.Ops += ops
			stat.Params = p
			stat.Calls++
			stat.Input = in.Shape.Clone()
			stat.Output = out.Shape.Clone()
		}))
		if !opts.Quiet {
			log.Info("registered counter", "module", displayPath(leaf.Path), "kind", m.Kind())
		}
	}

	x := nn.Meta(input)
	if opts.Materialize {
		fresh := nn.Materialize(model, opts.Seed)
		defer nn.Release(fresh)
		x = nn.Zeros(input)
	}
	out, err := nn.Call(ctx, model, x)
	if err != nil {
		return nil, fmt.Errorf("profile forward: %w", err)
	}

	res := &Result{
		Input:  input.Clone(),
		Output: out.Shape.Clone(),
		Layers: make([]LayerStat, 0, len(stats)),
	}
	for _, s := range stats {
		res.Ops += s.Ops
		res.Params += s.Params
		res.Layers = append(res.Layers, *s)
	}
	for k := range unsupported {
		res.Unsupported = append(res.Unsupported, k)
	}
	slices.Sort(res.Unsupported)
	return res, nil
}

func displayPath(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}
