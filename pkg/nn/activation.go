package nn

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/samcharles93/opcount/internal/tensor"
)

// ReLU computes max(x, 0).
type ReLU struct{ Base }

func NewReLU() *ReLU { return &ReLU{} }

func (r *ReLU) Kind() Kind { return KindReLU }

func (r *ReLU) Forward(_ context.Context, x *Tensor) (*Tensor, error) {
	return clamped(x, 0, math.MaxFloat32), nil
}

// ReLU6 computes min(max(x, 0), 6).
type ReLU6 struct{ Base }

func NewReLU6() *ReLU6 { return &ReLU6{} }

func (r *ReLU6) Kind() Kind { return KindReLU6 }

func (r *ReLU6) Forward(_ context.Context, x *Tensor) (*Tensor, error) {
	return clamped(x, 0, 6), nil
}

func clamped(x *Tensor, lo, hi float32) *Tensor {
	if x.IsMeta() {
		return Meta(x.Shape)
	}
	out := &Tensor{Shape: x.Shape.Clone(), Data: append([]float32(nil), x.Data...)}
	tensor.Clamp(out.Data, lo, hi)
	return out
}

// Softmax normalizes the last dimension into a probability distribution.
type Softmax struct{ Base }

func NewSoftmax() *Softmax { return &Softmax{} }

func (s *Softmax) Kind() Kind { return KindSoftmax }

func (s *Softmax) Forward(_ context.Context, x *Tensor) (*Tensor, error) {
	if x.IsMeta() {
		return Meta(x.Shape), nil
	}
	out := &Tensor{Shape: x.Shape.Clone(), Data: append([]float32(nil), x.Data...)}
	n := x.Shape.Dim(-1)
	for off := 0; off < len(out.Data); off += n {
		tensor.Softmax(out.Data[off : off+n])
	}
	return out, nil
}

// Dropout zeroes elements with probability P in training mode and is the
// identity in eval mode.
type Dropout struct {
	Base
	P float32
}

func NewDropout(p float32) (*Dropout, error) {
	if p < 0 || p >= 1 {
		return nil, configErr("dropout probability %v outside [0, 1)", p)
	}
	return &Dropout{P: p}, nil
}

func (d *Dropout) Kind() Kind { return KindDropout }

func (d *Dropout) Forward(_ context.Context, x *Tensor) (*Tensor, error) {
	if x.IsMeta() {
		return Meta(x.Shape), nil
	}
	out := &Tensor{Shape: x.Shape.Clone(), Data: append([]float32(nil), x.Data...)}
	if !d.Training() || d.P == 0 {
		return out, nil
	}
	scale := 1 / (1 - d.P)
	for i := range out.Data {
		if rand.Float32() < d.P {
			out.Data[i] = 0
		} else {
			out.Data[i] *= scale
		}
	}
	return out, nil
}

// Flatten collapses every dimension from Start onwards into one.
type Flatten struct {
	Base
	Start int
}

func NewFlatten(start int) *Flatten { return &Flatten{Start: start} }

func (f *Flatten) Kind() Kind { return KindFlatten }

func (f *Flatten) Forward(_ context.Context, x *Tensor) (*Tensor, error) {
	if f.Start < 0 || f.Start >= x.Shape.Rank() {
		return nil, shapeErr("flatten start %d for %s", f.Start, x.Shape)
	}
	shape := append(x.Shape[:f.Start:f.Start], int(Shape(x.Shape[f.Start:]).Numel()))
	return &Tensor{Shape: shape, Data: x.Data}, nil
}
