// Package nn is a small module system for describing neural networks: a tree
// of modules with named parameters, forward hooks and a train/eval mode.
// Forward passes run either on meta tensors (shapes only) or on real data.
package nn

import "context"

// Kind identifies a module type.
type Kind string

const (
	KindLinear            Kind = "Linear"
	KindConv2d            Kind = "Conv2d"
	KindConvTranspose2d   Kind = "ConvTranspose2d"
	KindBatchNorm2d       Kind = "BatchNorm2d"
	KindReLU              Kind = "ReLU"
	KindReLU6             Kind = "ReLU6"
	KindMaxPool1d         Kind = "MaxPool1d"
	KindMaxPool2d         Kind = "MaxPool2d"
	KindMaxPool3d         Kind = "MaxPool3d"
	KindAvgPool1d         Kind = "AvgPool1d"
	KindAvgPool2d         Kind = "AvgPool2d"
	KindAvgPool3d         Kind = "AvgPool3d"
	KindAdaptiveAvgPool2d Kind = "AdaptiveAvgPool2d"
	KindDropout           Kind = "Dropout"
	KindSoftmax           Kind = "Softmax"
	KindFlatten           Kind = "Flatten"
	KindSequential        Kind = "Sequential"
	KindResidual          Kind = "Residual"
)

// Module is a node in a network. Leaf modules compute; containers invoke
// their children through Call so that hooks fire for every module.
//
// Implementations must be pointer types and should embed Base.
type Module interface {
	Name() string
	SetName(name string)
	Kind() Kind
	// Children returns the direct submodules, nil for a leaf.
	Children() []Module
	// Parameters returns the module's own parameters, not its children's.
	Parameters() []*Parameter
	Hooks() *HookSet
	Training() bool
	SetTraining(training bool)
	Forward(ctx context.Context, x *Tensor) (*Tensor, error)
}

// Base carries the state every module shares. The zero value is a module in
// eval mode with no hooks.
type Base struct {
	name     string
	hooks    HookSet
	training bool
}

func (b *Base) Name() string              { return b.name }
func (b *Base) SetName(name string)       { b.name = name }
func (b *Base) Hooks() *HookSet           { return &b.hooks }
func (b *Base) Training() bool            { return b.training }
func (b *Base) SetTraining(training bool) { b.training = training }

// Children of a leaf module.
func (b *Base) Children() []Module { return nil }

// Parameters of a parameter-free module.
func (b *Base) Parameters() []*Parameter { return nil }

// Named sets the name of m and returns it, for use in constructors.
func Named[M Module](name string, m M) M {
	m.SetName(name)
	return m
}
