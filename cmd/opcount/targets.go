package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samcharles93/opcount/internal/archspec"
	"github.com/samcharles93/opcount/internal/zoo"
	"github.com/samcharles93/opcount/pkg/nn"
)

// target is one model named on the command line. build returns a fresh
// instance on every call.
type target struct {
	name  string
	input nn.Shape
	build func() (nn.Module, error)
}

// resolveTargets turns --model, --spec and --input into build targets. When
// needInput is set every target must end up with an input shape.
func resolveTargets(models, specs []string, input string, needInput bool) ([]target, error) {
	if len(models) == 0 && len(specs) == 0 {
		return nil, errors.New("at least one --model or --spec is required")
	}

	var override nn.Shape
	if strings.TrimSpace(input) != "" {
		s, err := nn.ParseShape(input)
		if err != nil {
			return nil, fmt.Errorf("--input: %w", err)
		}
		override = s
	}

	var targets []target
	for _, name := range models {
		entry := zoo.Lookup(name)
		if entry.Name == "" {
			return nil, fmt.Errorf("%w: %q (available: %s)", zoo.ErrUnknownModel, name, strings.Join(zoo.Names(), ", "))
		}
		targets = append(targets, target{
			name:  entry.Name,
			input: entry.Input,
			build: func() (nn.Module, error) {
				m, _, err := zoo.Build(entry.Name)
				return m, err
			},
		})
	}
	for _, path := range specs {
		spec, err := archspec.Load(path)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target{
			name:  spec.Name,
			input: spec.InputShape(),
			build: spec.Build,
		})
	}

	for i := range targets {
		if override != nil {
			targets[i].input = override.Clone()
		}
		if needInput && len(targets[i].input) == 0 {
			return nil, fmt.Errorf("%s: no input shape, pass --input", targets[i].name)
		}
	}
	return targets, nil
}
