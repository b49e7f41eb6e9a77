package nn

import (
	"context"

	"github.com/samcharles93/opcount/internal/tensor"
)

// Linear applies y = x Wᵀ + b over the last dimension of its input.
type Linear struct {
	Base
	InFeatures  int
	OutFeatures int
	Weight      *Parameter // [out, in]
	Bias        *Parameter // [out], nil without bias
}

func NewLinear(in, out int, bias bool) (*Linear, error) {
	if in <= 0 || out <= 0 {
		return nil, configErr("linear features must be positive, got %d->%d", in, out)
	}
	l := &Linear{
		InFeatures:  in,
		OutFeatures: out,
		Weight:      newParameter("weight", InitRandom, out, in),
	}
	if bias {
		l.Bias = newParameter("bias", InitZeros, out)
	}
	return l, nil
}

func (l *Linear) Kind() Kind { return KindLinear }

func (l *Linear) Parameters() []*Parameter {
	if l.Bias == nil {
		return []*Parameter{l.Weight}
	}
	return []*Parameter{l.Weight, l.Bias}
}

func (l *Linear) Forward(_ context.Context, x *Tensor) (*Tensor, error) {
	if x.Shape.Rank() < 1 || x.Shape.Dim(-1) != l.InFeatures {
		return nil, shapeErr("linear expects last dim %d, got %s", l.InFeatures, x.Shape)
	}
	outShape := x.Shape.Clone()
	outShape[len(outShape)-1] = l.OutFeatures
	out := x.like(outShape)
	if x.IsMeta() {
		return out, nil
	}

	wData, err := l.Weight.data()
	if err != nil {
		return nil, err
	}
	w, err := tensor.NewMatFromData(l.OutFeatures, l.InFeatures, wData)
	if err != nil {
		return nil, err
	}
	var bias []float32
	if l.Bias != nil {
		if bias, err = l.Bias.data(); err != nil {
			return nil, err
		}
	}
	rows := int(x.Numel()) / l.InFeatures
	for r := range rows {
		src := x.Data[r*l.InFeatures : (r+1)*l.InFeatures]
		dst := out.Data[r*l.OutFeatures : (r+1)*l.OutFeatures]
		tensor.MatVecBias(dst, &w, src, bias)
	}
	return out, nil
}
