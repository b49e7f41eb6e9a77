package nn

import (
	"context"

	"github.com/samcharles93/opcount/internal/tensor"
)

const defaultBatchNormEps = 1e-5

// BatchNorm2d normalizes each channel of an [N, C, H, W] input. In eval mode
// it uses the running statistics, in training mode the batch statistics.
type BatchNorm2d struct {
	Base
	NumFeatures int
	Eps         float32
	Weight      *Parameter // [C], initialised to ones
	Bias        *Parameter // [C]

	// Running statistics are buffers, not parameters.
	RunningMean []float32
	RunningVar  []float32
}

func NewBatchNorm2d(features int, eps float32) (*BatchNorm2d, error) {
	if features <= 0 {
		return nil, configErr("batchnorm features must be positive, got %d", features)
	}
	if eps <= 0 {
		eps = defaultBatchNormEps
	}
	bn := &BatchNorm2d{
		NumFeatures: features,
		Eps:         eps,
		Weight:      newParameter("weight", InitOnes, features),
		Bias:        newParameter("bias", InitZeros, features),
		RunningMean: make([]float32, features),
		RunningVar:  make([]float32, features),
	}
	for i := range bn.RunningVar {
		bn.RunningVar[i] = 1
	}
	return bn, nil
}

func (bn *BatchNorm2d) Kind() Kind { return KindBatchNorm2d }

func (bn *BatchNorm2d) Parameters() []*Parameter {
	return []*Parameter{bn.Weight, bn.Bias}
}

// Buffers exposes the running statistics under their PyTorch names.
// num_batches_tracked is only used during training and carries no data.
func (bn *BatchNorm2d) Buffers() []Buffer {
	return []Buffer{
		{Name: "running_mean", Data: bn.RunningMean},
		{Name: "running_var", Data: bn.RunningVar},
		{Name: "num_batches_tracked"},
	}
}

func (bn *BatchNorm2d) Forward(_ context.Context, x *Tensor) (*Tensor, error) {
	if x.Shape.Rank() != 4 || x.Shape[1] != bn.NumFeatures {
		return nil, shapeErr("batchnorm2d expects [N %d H W], got %s", bn.NumFeatures, x.Shape)
	}
	if x.IsMeta() {
		return Meta(x.Shape), nil
	}
	gamma, err := bn.Weight.data()
	if err != nil {
		return nil, err
	}
	beta, err := bn.Bias.data()
	if err != nil {
		return nil, err
	}

	out := &Tensor{Shape: x.Shape.Clone(), Data: append([]float32(nil), x.Data...)}
	n, c := x.Shape[0], x.Shape[1]
	plane := x.Shape[2] * x.Shape[3]
	for ch := range c {
		mean, variance := bn.RunningMean[ch], bn.RunningVar[ch]
		if bn.Training() {
			vals := make([]float32, 0, n*plane)
			for b := range n {
				off := (b*c + ch) * plane
				vals = append(vals, x.Data[off:off+plane]...)
			}
			mean, variance = tensor.MeanVar(vals)
		}
		for b := range n {
			off := (b*c + ch) * plane
			tensor.Normalize(out.Data[off:off+plane], mean, variance, bn.Eps, gamma[ch], beta[ch])
		}
	}
	return out, nil
}
