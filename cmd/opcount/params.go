package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/opcount/internal/gguf"
	"github.com/samcharles93/opcount/internal/report"
	"github.com/samcharles93/opcount/internal/safetensors"
	"github.com/samcharles93/opcount/pkg/nn"
)

type dtypeTotal struct {
	tensors int
	elems   int64
	bytes   int64
}

func (t *dtypeTotal) add(elems, bytes int64) *dtypeTotal {
	if t == nil {
		t = &dtypeTotal{}
	}
	t.tensors++
	t.elems += elems
	t.bytes += bytes
	return t
}

func paramsCmd() *cli.Command {
	var (
		models []string
		specs  []string
		input  string
	)

	return &cli.Command{
		Name:      "params",
		Usage:     "Count the parameters stored in a safetensors or GGUF checkpoint",
		ArgsUsage: "<file|index|dir>",
		Flags:     modelFlags(&models, &specs, &input),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return cli.Exit("error: expected exactly one checkpoint path", 1)
			}
			var targets []target
			if len(models) > 0 || len(specs) > 0 {
				var err error
				targets, err = resolveTargets(models, specs, input, false)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
			}
			complete, err := countCheckpoint(os.Stdout, cmd.Args().First(), targets)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if !complete {
				return cli.Exit("", 2)
			}
			return nil
		},
	}
}

// countCheckpoint prints the totals of the checkpoint at path and, with a
// target, how its tensors map onto the target's parameters. complete is false
// when that mapping left anything missing, unexpected or mismatched.
func countCheckpoint(w io.Writer, path string, targets []target) (complete bool, err error) {
	if len(targets) > 1 {
		return false, fmt.Errorf("compare against exactly one model")
	}
	if strings.EqualFold(filepath.Ext(path), ".gguf") {
		if len(targets) > 0 {
			return false, fmt.Errorf("comparing with a model needs a safetensors checkpoint")
		}
		f, err := gguf.Open(path)
		if err != nil {
			return false, err
		}
		totals := make(map[string]*dtypeTotal)
		for _, ti := range f.Tensors {
			size, _ := ti.Size()
			totals[ti.Type.String()] = totals[ti.Type.String()].add(ti.Numel(), size)
		}
		fmt.Fprintf(w, "Checkpoint: %s\n", path)
		if arch := f.Architecture(); arch != "" {
			fmt.Fprintf(w, "  arch:    %s\n", arch)
		}
		printTotals(w, len(f.Tensors), f.CountParams(), totals)
		return true, nil
	}

	ckpt, err := safetensors.OpenCheckpoint(path)
	if err != nil {
		return false, err
	}
	defer ckpt.Close()

	totals := make(map[string]*dtypeTotal)
	for _, name := range ckpt.Names() {
		ti, _ := ckpt.Tensor(name)
		totals[ti.DType] = totals[ti.DType].add(ti.Numel(), ti.Size())
	}
	fmt.Fprintf(w, "Checkpoint: %s\n", path)
	fmt.Fprintf(w, "  shards:  %d\n", len(ckpt.Shards))
	printTotals(w, ckpt.Len(), ckpt.CountParams(), totals)

	if len(targets) == 0 {
		return true, nil
	}
	model, err := targets[0].build()
	if err != nil {
		return false, err
	}
	rep, err := safetensors.LoadInto(model, ckpt)
	if err != nil {
		return false, err
	}
	printLoadReport(w, targets[0].name, uint64(nn.TotalParams(model)), rep)
	return rep.Complete(), nil
}

func printTotals(w io.Writer, tensors int, params int64, totals map[string]*dtypeTotal) {
	fmt.Fprintf(w, "  tensors: %d\n", tensors)
	fmt.Fprintf(w, "  params:  %s (%d)\n", report.Number(uint64(params)), params)
	for _, dt := range slices.Sorted(maps.Keys(totals)) {
		t := totals[dt]
		fmt.Fprintf(w, "  %-7s  %d tensors, %s params, %s bytes\n", dt, t.tensors, report.Number(uint64(t.elems)), report.Number(uint64(t.bytes)))
	}
}

func printLoadReport(w io.Writer, name string, params uint64, rep *safetensors.LoadReport) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Model: %s (%s params)\n", name, report.Number(params))
	fmt.Fprintf(w, "  loaded:     %d\n", len(rep.Loaded))
	if len(rep.Buffers) > 0 {
		fmt.Fprintf(w, "  buffers:    %d\n", len(rep.Buffers))
	}
	fmt.Fprintf(w, "  missing:    %d\n", len(rep.Missing))
	for _, n := range rep.Missing {
		fmt.Fprintf(w, "    %s\n", n)
	}
	fmt.Fprintf(w, "  unexpected: %d\n", len(rep.Unexpected))
	for _, n := range rep.Unexpected {
		fmt.Fprintf(w, "    %s\n", n)
	}
	fmt.Fprintf(w, "  mismatched: %d\n", len(rep.Mismatched))
	for _, m := range rep.Mismatched {
		fmt.Fprintf(w, "    %s: model %s, checkpoint %v\n", m.Name, m.Parameter, m.Checkpoint)
	}
}
