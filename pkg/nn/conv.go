package nn

import (
	"context"
)

// Conv2dConfig describes a 2-D convolution. Zero strides, dilations and
// groups default to 1.
type Conv2dConfig struct {
	InChannels  int
	OutChannels int
	Kernel      [2]int
	Stride      [2]int
	Padding     [2]int
	Dilation    [2]int
	Groups      int
	Bias        bool
}

func (c *Conv2dConfig) normalize() error {
	for i := range 2 {
		if c.Stride[i] == 0 {
			c.Stride[i] = 1
		}
		if c.Dilation[i] == 0 {
			c.Dilation[i] = 1
		}
		if c.Kernel[i] <= 0 || c.Stride[i] < 0 || c.Dilation[i] < 0 || c.Padding[i] < 0 {
			return configErr("conv kernel %v stride %v padding %v dilation %v", c.Kernel, c.Stride, c.Padding, c.Dilation)
		}
	}
	if c.Groups == 0 {
		c.Groups = 1
	}
	if c.InChannels <= 0 || c.OutChannels <= 0 || c.Groups < 0 {
		return configErr("conv channels %d->%d groups %d", c.InChannels, c.OutChannels, c.Groups)
	}
	if c.InChannels%c.Groups != 0 || c.OutChannels%c.Groups != 0 {
		return configErr("conv channels %d->%d not divisible by groups %d", c.InChannels, c.OutChannels, c.Groups)
	}
	return nil
}

// Conv2d is a 2-D convolution over [N, C, H, W] or [C, H, W] inputs.
type Conv2d struct {
	Base
	Conv2dConfig
	Weight *Parameter // [out, in/groups, kh, kw]
	Bias   *Parameter // [out]
}

func NewConv2d(cfg Conv2dConfig) (*Conv2d, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	c := &Conv2d{
		Conv2dConfig: cfg,
		Weight: newParameter("weight", InitRandom,
			cfg.OutChannels, cfg.InChannels/cfg.Groups, cfg.Kernel[0], cfg.Kernel[1]),
	}
	if cfg.Bias {
		c.Bias = newParameter("bias", InitZeros, cfg.OutChannels)
	}
	return c, nil
}

func (c *Conv2d) Kind() Kind { return KindConv2d }

func (c *Conv2d) Parameters() []*Parameter {
	if c.Bias == nil {
		return []*Parameter{c.Weight}
	}
	return []*Parameter{c.Weight, c.Bias}
}

// OutputShape returns the output shape for input shape in.
func (c *Conv2d) OutputShape(in Shape) (Shape, error) {
	lead, ch, spatial, err := splitChannels(in, 2)
	if err != nil {
		return nil, err
	}
	if ch != c.InChannels {
		return nil, shapeErr("conv2d expects %d channels, got %s", c.InChannels, in)
	}
	out := append(lead.Clone(), c.OutChannels)
	for i, d := range spatial {
		o := (d+2*c.Padding[i]-c.Dilation[i]*(c.Kernel[i]-1)-1)/c.Stride[i] + 1
		if d+2*c.Padding[i] < c.Dilation[i]*(c.Kernel[i]-1)+1 || o <= 0 {
			return nil, shapeErr("conv2d input %s too small for kernel %v", in, c.Kernel)
		}
		out = append(out, o)
	}
	return out, nil
}

func (c *Conv2d) Forward(_ context.Context, x *Tensor) (*Tensor, error) {
	outShape, err := c.OutputShape(x.Shape)
	if err != nil {
		return nil, err
	}
	out := x.like(outShape)
	if x.IsMeta() {
		return out, nil
	}
	w, err := c.Weight.data()
	if err != nil {
		return nil, err
	}
	var bias []float32
	if c.Bias != nil {
		if bias, err = c.Bias.data(); err != nil {
			return nil, err
		}
	}

	h, wd := x.Shape.Dim(-2), x.Shape.Dim(-1)
	oh, ow := outShape.Dim(-2), outShape.Dim(-1)
	kh, kw := c.Kernel[0], c.Kernel[1]
	cinG := c.InChannels / c.Groups
	coutG := c.OutChannels / c.Groups
	batch := int(x.Numel()) / (c.InChannels * h * wd)

	for n := range batch {
		xn := x.Data[n*c.InChannels*h*wd:]
		yn := out.Data[n*c.OutChannels*oh*ow:]
		for oc := range c.OutChannels {
			g := oc / coutG
			wo := w[oc*cinG*kh*kw:]
			var b float32
			if bias != nil {
				b = bias[oc]
			}
			for y := range oh {
				for xo := range ow {
					sum := b
					for ic := range cinG {
						plane := xn[(g*cinG+ic)*h*wd:]
						kern := wo[ic*kh*kw:]
						for i := range kh {
							iy := y*c.Stride[0] - c.Padding[0] + i*c.Dilation[0]
							if iy < 0 || iy >= h {
								continue
							}
							for j := range kw {
								ix := xo*c.Stride[1] - c.Padding[1] + j*c.Dilation[1]
								if ix < 0 || ix >= wd {
									continue
								}
								sum += plane[iy*wd+ix] * kern[i*kw+j]
							}
						}
					}
					yn[(oc*oh+y)*ow+xo] = sum
				}
			}
		}
	}
	return out, nil
}

// ConvTranspose2dConfig describes a transposed 2-D convolution.
type ConvTranspose2dConfig struct {
	Conv2dConfig
	OutputPadding [2]int
}

// ConvTranspose2d is the gradient of Conv2d with respect to its input, used
// for learned upsampling.
type ConvTranspose2d struct {
	Base
	ConvTranspose2dConfig
	Weight *Parameter // [in, out/groups, kh, kw]
	Bias   *Parameter // [out]
}

func NewConvTranspose2d(cfg ConvTranspose2dConfig) (*ConvTranspose2d, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	for i := range 2 {
		if cfg.OutputPadding[i] < 0 || (cfg.OutputPadding[i] >= cfg.Stride[i] && cfg.OutputPadding[i] >= cfg.Dilation[i]) {
			return nil, configErr("output padding %v must be smaller than stride or dilation", cfg.OutputPadding)
		}
	}
	c := &ConvTranspose2d{
		ConvTranspose2dConfig: cfg,
		Weight: newParameter("weight", InitRandom,
			cfg.InChannels, cfg.OutChannels/cfg.Groups, cfg.Kernel[0], cfg.Kernel[1]),
	}
	if cfg.Bias {
		c.Bias = newParameter("bias", InitZeros, cfg.OutChannels)
	}
	return c, nil
}

func (c *ConvTranspose2d) Kind() Kind { return KindConvTranspose2d }

func (c *ConvTranspose2d) Parameters() []*Parameter {
	if c.Bias == nil {
		return []*Parameter{c.Weight}
	}
	return []*Parameter{c.Weight, c.Bias}
}

// OutputShape returns the output shape for input shape in.
func (c *ConvTranspose2d) OutputShape(in Shape) (Shape, error) {
	lead, ch, spatial, err := splitChannels(in, 2)
	if err != nil {
		return nil, err
	}
	if ch != c.InChannels {
		return nil, shapeErr("conv_transpose2d expects %d channels, got %s", c.InChannels, in)
	}
	out := append(lead.Clone(), c.OutChannels)
	for i, d := range spatial {
		o := (d-1)*c.Stride[i] - 2*c.Padding[i] + c.Dilation[i]*(c.Kernel[i]-1) + c.OutputPadding[i] + 1
		if o <= 0 {
			return nil, shapeErr("conv_transpose2d output size %d for input %s", o, in)
		}
		out = append(out, o)
	}
	return out, nil
}

func (c *ConvTranspose2d) Forward(_ context.Context, x *Tensor) (*Tensor, error) {
	outShape, err := c.OutputShape(x.Shape)
	if err != nil {
		return nil, err
	}
	out := x.like(outShape)
	if x.IsMeta() {
		return out, nil
	}
	w, err := c.Weight.data()
	if err != nil {
		return nil, err
	}

	h, wd := x.Shape.Dim(-2), x.Shape.Dim(-1)
	oh, ow := outShape.Dim(-2), outShape.Dim(-1)
	kh, kw := c.Kernel[0], c.Kernel[1]
	cinG := c.InChannels / c.Groups
	coutG := c.OutChannels / c.Groups
	batch := int(x.Numel()) / (c.InChannels * h * wd)

	for n := range batch {
		xn := x.Data[n*c.InChannels*h*wd:]
		yn := out.Data[n*c.OutChannels*oh*ow:]
		for ic := range c.InChannels {
			g := ic / cinG
			plane := xn[ic*h*wd:]
			for iy := range h {
				for ix := range wd {
					v := plane[iy*wd+ix]
					if v == 0 {
						continue
					}
					for oc := range coutG {
						kern := w[(ic*coutG+oc)*kh*kw:]
						dst := yn[(g*coutG+oc)*oh*ow:]
						for i := range kh {
							y := iy*c.Stride[0] - c.Padding[0] + i*c.Dilation[0]
							if y < 0 || y >= oh {
								continue
							}
							for j := range kw {
								xo := ix*c.Stride[1] - c.Padding[1] + j*c.Dilation[1]
								if xo < 0 || xo >= ow {
									continue
								}
								dst[y*ow+xo] += v * kern[i*kw+j]
							}
						}
					}
				}
			}
		}
	}
	if c.Bias != nil {
		bias, err := c.Bias.data()
		if err != nil {
			return nil, err
		}
		for n := range batch {
			for oc := range c.OutChannels {
				plane := out.Data[(n*c.OutChannels+oc)*oh*ow : (n*c.OutChannels+oc+1)*oh*ow]
				for i := range plane {
					plane[i] += bias[oc]
				}
			}
		}
	}
	return out, nil
}

// splitChannels splits an [N, C, spatial...] or [C, spatial...] shape with
// dims spatial dimensions.
func splitChannels(in Shape, dims int) (lead Shape, ch int, spatial Shape, err error) {
	r := in.Rank()
	if r != dims+1 && r != dims+2 {
		return nil, 0, nil, shapeErr("expected rank %d or %d, got %s", dims+1, dims+2, in)
	}
	return in[:r-dims-1], in[r-dims-1], in[r-dims:], nil
}
