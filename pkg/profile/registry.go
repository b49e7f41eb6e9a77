package profile

import (
	"maps"
	"slices"

	"github.com/samcharles93/opcount/pkg/nn"
)

// CountFunc attributes operations and parameters to one invocation of a leaf
// module given the shapes it saw. It must not retain or modify its arguments.
type CountFunc func(m nn.Module, in, out nn.Shape) (ops, params uint64)

// Registry maps module kinds to counting functions. A kind present with a nil
// function is known to cost nothing: it is not instrumented and raises no
// warning.
type Registry map[nn.Kind]CountFunc

// DefaultRegistry returns a fresh copy of the built-in counters.
func DefaultRegistry() Registry {
	return Registry{
		nn.KindConv2d:            countConv2d,
		nn.KindConvTranspose2d:   countConvTranspose2d,
		nn.KindBatchNorm2d:       countBatchNorm,
		nn.KindReLU:              countActivation,
		nn.KindReLU6:             countActivation,
		nn.KindMaxPool1d:         countMaxPool,
		nn.KindMaxPool2d:         countMaxPool,
		nn.KindMaxPool3d:         countMaxPool,
		nn.KindAvgPool1d:         countAvgPool,
		nn.KindAvgPool2d:         countAvgPool,
		nn.KindAvgPool3d:         countAvgPool,
		nn.KindAdaptiveAvgPool2d: countAdaptiveAvgPool,
		nn.KindLinear:            countLinear,
		nn.KindSoftmax:           countSoftmax,
		nn.KindDropout:           nil,
		nn.KindFlatten:           nil,
	}
}

// Merge returns a new registry holding r overlaid with overrides.
func (r Registry) Merge(overrides Registry) Registry {
	out := make(Registry, len(r)+len(overrides))
	maps.Copy(out, r)
	maps.Copy(out, overrides)
	return out
}

// Kinds returns the registered kinds in sorted order.
func (r Registry) Kinds() []nn.Kind {
	return slices.Sorted(maps.Keys(r))
}
