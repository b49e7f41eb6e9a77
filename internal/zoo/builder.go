package zoo

import (
	"github.com/samcharles93/opcount/pkg/nn"
)

// builder constructs layers and keeps the first error, so architectures can
// be written as straight-line code and checked once at the end.
type builder struct {
	err error
}

func (b *builder) keep(err error) {
	if b.err == nil {
		b.err = err
	}
}

// orZero substitutes an empty module for a failed constructor so the tree
// can still be assembled; done reports the error.
func orZero[M any](m *M, err error) *M {
	if err != nil || m == nil {
		return new(M)
	}
	return m
}

func (b *builder) conv(in, out, k, stride, pad int, bias bool) *nn.Conv2d {
	return b.convGroups(in, out, k, stride, pad, 1, bias)
}

func (b *builder) convGroups(in, out, k, stride, pad, groups int, bias bool) *nn.Conv2d {
	c, err := nn.NewConv2d(nn.Conv2dConfig{
		InChannels:  in,
		OutChannels: out,
		Kernel:      [2]int{k, k},
		Stride:      [2]int{stride, stride},
		Padding:     [2]int{pad, pad},
		Groups:      groups,
		Bias:        bias,
	})
	b.keep(err)
	return orZero(c, err)
}

func (b *builder) deconv(in, out, k, stride, pad int, bias bool) *nn.ConvTranspose2d {
	c, err := nn.NewConvTranspose2d(nn.ConvTranspose2dConfig{
		Conv2dConfig: nn.Conv2dConfig{
			InChannels:  in,
			OutChannels: out,
			Kernel:      [2]int{k, k},
			Stride:      [2]int{stride, stride},
			Padding:     [2]int{pad, pad},
			Bias:        bias,
		},
	})
	b.keep(err)
	return orZero(c, err)
}

func (b *builder) bn(features int) *nn.BatchNorm2d {
	m, err := nn.NewBatchNorm2d(features, 0)
	b.keep(err)
	return orZero(m, err)
}

func (b *builder) linear(in, out int) *nn.Linear {
	m, err := nn.NewLinear(in, out, true)
	b.keep(err)
	return orZero(m, err)
}

func (b *builder) maxPool(k, stride, pad int) *nn.MaxPool {
	m, err := nn.NewMaxPool(nn.PoolConfig{Dims: 2, Kernel: []int{k}, Stride: []int{stride}, Padding: []int{pad}})
	b.keep(err)
	return orZero(m, err)
}

func (b *builder) adaptive(h, w int) *nn.AdaptiveAvgPool2d {
	m, err := nn.NewAdaptiveAvgPool2d(h, w)
	b.keep(err)
	return orZero(m, err)
}

func (b *builder) dropout(p float32) *nn.Dropout {
	m, err := nn.NewDropout(p)
	b.keep(err)
	return orZero(m, err)
}

func (b *builder) done(m nn.Module) (nn.Module, error) {
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}
