package nn

import (
	"context"
	"math"
)

// PoolConfig describes a max or average pooling window over the trailing
// Dims spatial dimensions. Stride defaults to Kernel.
type PoolConfig struct {
	Dims    int
	Kernel  []int
	Stride  []int
	Padding []int
}

func expandInts(name string, v []int, dims, def int) ([]int, error) {
	switch len(v) {
	case 0:
		if def < 0 {
			return nil, configErr("pool %s is required", name)
		}
		out := make([]int, dims)
		for i := range out {
			out[i] = def
		}
		return out, nil
	case 1:
		out := make([]int, dims)
		for i := range out {
			out[i] = v[0]
		}
		return out, nil
	case dims:
		return append([]int(nil), v...), nil
	default:
		return nil, configErr("pool %s %v for %d dims", name, v, dims)
	}
}

func newPoolConfig(cfg PoolConfig) (PoolConfig, error) {
	if cfg.Dims < 1 || cfg.Dims > 3 {
		return PoolConfig{}, configErr("pool dims %d", cfg.Dims)
	}
	kernel, err := expandInts("kernel", cfg.Kernel, cfg.Dims, -1)
	if err != nil {
		return PoolConfig{}, err
	}
	stride, err := expandInts("stride", cfg.Stride, cfg.Dims, 0)
	if err != nil {
		return PoolConfig{}, err
	}
	padding, err := expandInts("padding", cfg.Padding, cfg.Dims, 0)
	if err != nil {
		return PoolConfig{}, err
	}
	for i := range kernel {
		if stride[i] == 0 {
			stride[i] = kernel[i]
		}
		if kernel[i] <= 0 || stride[i] <= 0 || padding[i] < 0 || padding[i] > kernel[i]/2 {
			return PoolConfig{}, configErr("pool kernel %v stride %v padding %v", kernel, stride, padding)
		}
	}
	return PoolConfig{Dims: cfg.Dims, Kernel: kernel, Stride: stride, Padding: padding}, nil
}

// KernelVolume is the number of elements in one pooling window.
func (p PoolConfig) KernelVolume() int64 {
	return Shape(p.Kernel).Numel()
}

// OutputShape returns the pooled shape for input shape in.
func (p PoolConfig) OutputShape(in Shape) (Shape, error) {
	r := in.Rank()
	if r != p.Dims+1 && r != p.Dims+2 {
		return nil, shapeErr("pool%dd expects rank %d or %d, got %s", p.Dims, p.Dims+1, p.Dims+2, in)
	}
	out := in.Clone()
	for i := range p.Dims {
		d := in[r-p.Dims+i]
		o := (d+2*p.Padding[i]-p.Kernel[i])/p.Stride[i] + 1
		if d+2*p.Padding[i] < p.Kernel[i] || o <= 0 {
			return nil, shapeErr("pool%dd input %s too small for kernel %v", p.Dims, in, p.Kernel)
		}
		out[r-p.Dims+i] = o
	}
	return out, nil
}

func (p PoolConfig) run(x *Tensor, outShape Shape, avg bool) *Tensor {
	out := Zeros(outShape)
	r := x.Shape.Rank()
	inSp := x.Shape[r-p.Dims:]
	outSp := outShape[r-p.Dims:]
	inPlane := int(inSp.Numel())
	outPlane := int(outSp.Numel())
	planes := int(x.Numel()) / inPlane
	volume := float32(p.KernelVolume())
	pos := make([]int, p.Dims)

	for pl := range planes {
		src := x.Data[pl*inPlane : (pl+1)*inPlane]
		o := pl * outPlane
		forEachIndex(outSp, func(oi []int) {
			acc := float32(0)
			if !avg {
				acc = float32(math.Inf(-1))
			}
			forEachIndex(p.Kernel, func(ki []int) {
				for d := range p.Dims {
					pos[d] = oi[d]*p.Stride[d] - p.Padding[d] + ki[d]
					if pos[d] < 0 || pos[d] >= inSp[d] {
						return
					}
				}
				v := src[flatIndex(pos, inSp)]
				if avg {
					acc += v
				} else if v > acc {
					acc = v
				}
			})
			if avg {
				acc /= volume
			}
			out.Data[o] = acc
			o++
		})
	}
	return out
}

// MaxPool takes the maximum over each window.
type MaxPool struct {
	Base
	PoolConfig
}

func NewMaxPool(cfg PoolConfig) (*MaxPool, error) {
	pc, err := newPoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &MaxPool{PoolConfig: pc}, nil
}

func (m *MaxPool) Kind() Kind {
	return [...]Kind{KindMaxPool1d, KindMaxPool2d, KindMaxPool3d}[m.Dims-1]
}

func (m *MaxPool) Forward(_ context.Context, x *Tensor) (*Tensor, error) {
	outShape, err := m.OutputShape(x.Shape)
	if err != nil {
		return nil, err
	}
	if x.IsMeta() {
		return Meta(outShape), nil
	}
	return m.run(x, outShape, false), nil
}

// AvgPool averages each window. Zero padding counts towards the divisor.
type AvgPool struct {
	Base
	PoolConfig
}

func NewAvgPool(cfg PoolConfig) (*AvgPool, error) {
	pc, err := newPoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &AvgPool{PoolConfig: pc}, nil
}

func (a *AvgPool) Kind() Kind {
	return [...]Kind{KindAvgPool1d, KindAvgPool2d, KindAvgPool3d}[a.Dims-1]
}

func (a *AvgPool) Forward(_ context.Context, x *Tensor) (*Tensor, error) {
	outShape, err := a.OutputShape(x.Shape)
	if err != nil {
		return nil, err
	}
	if x.IsMeta() {
		return Meta(outShape), nil
	}
	return a.run(x, outShape, true), nil
}

// AdaptiveAvgPool2d averages [.., H, W] down to a fixed Output size.
type AdaptiveAvgPool2d struct {
	Base
	Output [2]int
}

func NewAdaptiveAvgPool2d(h, w int) (*AdaptiveAvgPool2d, error) {
	if h <= 0 || w <= 0 {
		return nil, configErr("adaptive pool output %dx%d", h, w)
	}
	return &AdaptiveAvgPool2d{Output: [2]int{h, w}}, nil
}

func (a *AdaptiveAvgPool2d) Kind() Kind { return KindAdaptiveAvgPool2d }

// Window returns the largest bin size along each axis for input shape in.
func (a *AdaptiveAvgPool2d) Window(in Shape) [2]int {
	return [2]int{
		ceilDiv(in.Dim(-2), a.Output[0]),
		ceilDiv(in.Dim(-1), a.Output[1]),
	}
}

func (a *AdaptiveAvgPool2d) Forward(_ context.Context, x *Tensor) (*Tensor, error) {
	r := x.Shape.Rank()
	if r != 3 && r != 4 {
		return nil, shapeErr("adaptive_avg_pool2d expects rank 3 or 4, got %s", x.Shape)
	}
	outShape := x.Shape.Clone()
	outShape[r-2], outShape[r-1] = a.Output[0], a.Output[1]
	if x.IsMeta() {
		return Meta(outShape), nil
	}

	out := Zeros(outShape)
	h, w := x.Shape[r-2], x.Shape[r-1]
	oh, ow := a.Output[0], a.Output[1]
	planes := int(x.Numel()) / (h * w)
	for pl := range planes {
		src := x.Data[pl*h*w:]
		dst := out.Data[pl*oh*ow:]
		for i := range oh {
			y0, y1 := i*h/oh, ceilDiv((i+1)*h, oh)
			for j := range ow {
				x0, x1 := j*w/ow, ceilDiv((j+1)*w, ow)
				var sum float32
				for y := y0; y < y1; y++ {
					for xi := x0; xi < x1; xi++ {
						sum += src[y*w+xi]
					}
				}
				dst[i*ow+j] = sum / float32((y1-y0)*(x1-x0))
			}
		}
	}
	return out, nil
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// forEachIndex calls fn with every index of a row-major grid of the given
// dims. fn must not retain idx.
func forEachIndex(dims []int, fn func(idx []int)) {
	for _, d := range dims {
		if d <= 0 {
			return
		}
	}
	idx := make([]int, len(dims))
	for {
		fn(idx)
		i := len(dims) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < dims[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

func flatIndex(idx []int, dims []int) int {
	off := 0
	for i, v := range idx {
		off = off*dims[i] + v
	}
	return off
}
