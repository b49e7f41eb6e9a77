package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/opcount/internal/logger"
	"github.com/samcharles93/opcount/internal/report"
	"github.com/samcharles93/opcount/internal/safetensors"
	"github.com/samcharles93/opcount/pkg/nn"
	"github.com/samcharles93/opcount/pkg/profile"
)

func profileCmd() *cli.Command {
	var (
		models      []string
		specs       []string
		input       string
		format      string
		free        []string
		layers      bool
		kinds       bool
		quiet       bool
		materialize bool
		seed        int64
		weights     string
		jobs        int
	)

	return &cli.Command{
		Name:    "profile",
		Aliases: []string{"p"},
		Usage:   "Count operations and parameters of one or more models",
		Flags: append(modelFlags(&models, &specs, &input),
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "output format (table, json)",
				Value:       "table",
				Destination: &format,
			},
			&cli.StringSliceFlag{
				Name:        "free",
				Usage:       "module kind to count as zero operations (repeatable)",
				Destination: &free,
			},
			&cli.BoolFlag{
				Name:        "layers",
				Usage:       "include a per-layer breakdown",
				Destination: &layers,
			},
			&cli.BoolFlag{
				Name:        "kinds",
				Usage:       "include a per-kind breakdown",
				Destination: &kinds,
			},
			&cli.BoolFlag{
				Name:        "quiet",
				Aliases:     []string{"q"},
				Usage:       "suppress counter registration notices",
				Destination: &quiet,
			},
			&cli.BoolFlag{
				Name:        "materialize",
				Usage:       "run the forward pass on real zero-filled tensors",
				Destination: &materialize,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "seed for parameters initialised by --materialize",
				Value:       1,
				Destination: &seed,
			},
			&cli.StringFlag{
				Name:        "weights",
				Aliases:     []string{"w"},
				Usage:       "safetensors file, index or directory to load before profiling (single model only)",
				Destination: &weights,
			},
			&cli.IntFlag{
				Name:        "jobs",
				Aliases:     []string{"j"},
				Usage:       "number of models profiled concurrently",
				Value:       runtime.GOMAXPROCS(0),
				Destination: &jobs,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyProfileConfig(cmd, LoadConfig(), &format, &jobs, &quiet, &materialize, &seed)

			outFormat, err := report.ParseFormat(format)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			targets, err := resolveTargets(models, specs, input, true)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if weights != "" && len(targets) != 1 {
				return cli.Exit("error: --weights needs exactly one model", 1)
			}

			custom := make(profile.Registry, len(free))
			for _, k := range free {
				custom[nn.Kind(k)] = nil
			}
			opts := profile.Options{
				CustomOps:   custom,
				Quiet:       quiet || len(targets) > 1,
				Materialize: materialize || weights != "",
				Seed:        seed,
			}

			entries := make([]report.Entry, len(targets))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(max(jobs, 1))
			for i, t := range targets {
				g.Go(func() error {
					res, err := runTarget(gctx, log.With("model", t.name), t, weights, opts)
					if err != nil {
						return fmt.Errorf("%s: %w", t.name, err)
					}
					entries[i] = report.Entry{Model: t.name, Result: res}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			if err := report.Write(os.Stdout, outFormat, entries, report.Options{Layers: layers, Kinds: kinds}); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return nil
		},
	}
}

func runTarget(ctx context.Context, log logger.Logger, t target, weights string, opts profile.Options) (*profile.Result, error) {
	model, err := t.build()
	if err != nil {
		return nil, err
	}
	if weights != "" {
		if err := loadWeights(log, model, weights); err != nil {
			return nil, err
		}
	}

	opts.Logger = log
	start := time.Now()
	res, err := profile.Profile(ctx, model, t.input, opts)
	if err != nil {
		var fe *nn.ForwardError
		if errors.As(err, &fe) {
			log.Error("forward pass failed", "module", fe.Path, "kind", fe.Kind)
		}
		return nil, err
	}
	log.Debug("profiled", "input", t.input.String(), "ops", res.Ops, "params", res.Params, "elapsed", time.Since(start))
	return res, nil
}

func loadWeights(log logger.Logger, model nn.Module, path string) error {
	ckpt, err := safetensors.OpenCheckpoint(path)
	if err != nil {
		return err
	}
	defer ckpt.Close()

	rep, err := safetensors.LoadInto(model, ckpt)
	if err != nil {
		return err
	}
	log.Info("loaded weights", "path", path, "tensors", len(rep.Loaded))
	for _, name := range rep.Missing {
		log.Warn("parameter missing from checkpoint", "name", name)
	}
	for _, m := range rep.Mismatched {
		log.Warn("shape mismatch", "name", m.Name, "parameter", m.Parameter.String(), "checkpoint", fmt.Sprint(m.Checkpoint))
	}
	if len(rep.Unexpected) > 0 {
		log.Debug("unused checkpoint tensors", "count", len(rep.Unexpected))
	}
	return nil
}
