package archspec

import (
	"fmt"
	"strings"

	"github.com/samcharles93/opcount/pkg/nn"
)

// Build constructs the model tree. Every call returns fresh modules.
func (s *Spec) Build() (nn.Module, error) {
	return buildSequence("layers", s.Layers)
}

func buildSequence(where string, layers []Layer) (*nn.Sequential, error) {
	seq := nn.NewSequential()
	for i, l := range layers {
		n := max(l.Repeat, 1)
		for r := range n {
			m, err := buildLayer(fmt.Sprintf("%s[%d]", where, i), l)
			if err != nil {
				return nil, err
			}
			if l.Name != "" {
				name := l.Name
				if n > 1 {
					name = fmt.Sprintf("%s%d", l.Name, r)
				}
				m.SetName(name)
			}
			seq.Append(m)
		}
	}
	return seq, nil
}

func buildLayer(where string, l Layer) (nn.Module, error) {
	m, err := newModule(where, l)
	if err != nil {
		return nil, fmt.Errorf("%s (%s): %w", where, l.Kind, err)
	}
	return m, nil
}

func newModule(where string, l Layer) (nn.Module, error) {
	switch nn.Kind(l.Kind) {
	case nn.KindLinear:
		return nn.NewLinear(l.In, l.Out, biasOr(l.Bias, true))
	case nn.KindConv2d:
		cfg, err := l.conv2d()
		if err != nil {
			return nil, err
		}
		return nn.NewConv2d(cfg)
	case nn.KindConvTranspose2d:
		cfg, err := l.conv2d()
		if err != nil {
			return nil, err
		}
		op, err := pair("output_padding", l.OutputPadding, 0)
		if err != nil {
			return nil, err
		}
		return nn.NewConvTranspose2d(nn.ConvTranspose2dConfig{Conv2dConfig: cfg, OutputPadding: op})
	case nn.KindBatchNorm2d:
		return nn.NewBatchNorm2d(l.Features, l.Eps)
	case nn.KindReLU:
		return nn.NewReLU(), nil
	case nn.KindReLU6:
		return nn.NewReLU6(), nil
	case nn.KindSoftmax:
		return nn.NewSoftmax(), nil
	case nn.KindDropout:
		return nn.NewDropout(l.P)
	case nn.KindFlatten:
		start := 1
		if l.Start != nil {
			start = *l.Start
		}
		return nn.NewFlatten(start), nil
	case nn.KindMaxPool1d, nn.KindMaxPool2d, nn.KindMaxPool3d:
		return nn.NewMaxPool(l.pool())
	case nn.KindAvgPool1d, nn.KindAvgPool2d, nn.KindAvgPool3d:
		return nn.NewAvgPool(l.pool())
	case nn.KindAdaptiveAvgPool2d:
		out, err := pair("output", l.Output, 1)
		if err != nil {
			return nil, err
		}
		return nn.NewAdaptiveAvgPool2d(out[0], out[1])
	case nn.KindSequential:
		if len(l.Layers) == 0 {
			return nil, fmt.Errorf("%w: empty sequential", ErrInvalidLayer)
		}
		return buildSequence(where+".layers", l.Layers)
	case nn.KindResidual:
		if len(l.Body) == 0 {
			return nil, fmt.Errorf("%w: residual without body", ErrInvalidLayer)
		}
		body, err := buildSequence(where+".body", l.Body)
		if err != nil {
			return nil, err
		}
		var shortcut nn.Module
		if len(l.Shortcut) > 0 {
			sc, err := buildSequence(where+".shortcut", l.Shortcut)
			if err != nil {
				return nil, err
			}
			shortcut = sc
		}
		return nn.NewResidual(body, shortcut), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, l.Kind)
	}
}

func (l Layer) conv2d() (nn.Conv2dConfig, error) {
	cfg := nn.Conv2dConfig{InChannels: l.In, OutChannels: l.Out, Groups: l.Groups, Bias: biasOr(l.Bias, true)}
	var err error
	if cfg.Kernel, err = pair("kernel", l.Kernel, 0); err != nil {
		return cfg, err
	}
	if cfg.Stride, err = pair("stride", l.Stride, 1); err != nil {
		return cfg, err
	}
	if cfg.Padding, err = pair("padding", l.Padding, 0); err != nil {
		return cfg, err
	}
	if cfg.Dilation, err = pair("dilation", l.Dilation, 1); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (l Layer) pool() nn.PoolConfig {
	return nn.PoolConfig{
		Dims:    int(l.Kind[len(l.Kind)-2] - '0'),
		Kernel:  l.Kernel,
		Stride:  l.Stride,
		Padding: l.Padding,
	}
}

// pair expands a scalar-or-pair field to two values.
func pair(field string, v Ints, def int) ([2]int, error) {
	switch len(v) {
	case 0:
		return [2]int{def, def}, nil
	case 1:
		return [2]int{v[0], v[0]}, nil
	case 2:
		return [2]int{v[0], v[1]}, nil
	default:
		return [2]int{}, fmt.Errorf("%w: %s takes 1 or 2 values, got %s", ErrInvalidLayer, field, formatInts(v))
	}
}

func biasOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func formatInts(v Ints) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
