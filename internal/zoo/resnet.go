package zoo

import (
	"context"
	"fmt"

	"github.com/samcharles93/opcount/pkg/nn"
)

// Container kinds used by the ResNet blocks. They are never leaves, so the
// profiler does not need counters for them.
const (
	KindBasicBlock nn.Kind = "BasicBlock"
	KindBottleneck nn.Kind = "Bottleneck"
)

// block is a residual unit whose children carry the torchvision names
// (conv1, bn1, relu, ..., downsample). The same relu runs after every conv
// stage and again after the addition.
type block struct {
	nn.Base
	kind     nn.Kind
	children []nn.Module
	res      *nn.Residual
	relu     *nn.ReLU
}

func (b *block) Kind() nn.Kind         { return b.kind }
func (b *block) Children() []nn.Module { return b.children }

func (b *block) Forward(ctx context.Context, x *nn.Tensor) (*nn.Tensor, error) {
	y, err := b.res.Forward(ctx, x)
	if err != nil {
		return nil, err
	}
	return nn.Call(ctx, b.relu, y)
}

func (bld *builder) residualBlock(bottleneck bool, in, width, stride int) *block {
	relu := nn.Named("relu", nn.NewReLU())
	blk := &block{kind: KindBasicBlock, relu: relu}
	out := width
	var body []nn.Module
	if bottleneck {
		out = width * 4
		conv1 := nn.Named("conv1", bld.conv(in, width, 1, 1, 0, false))
		bn1 := nn.Named("bn1", bld.bn(width))
		conv2 := nn.Named("conv2", bld.conv(width, width, 3, stride, 1, false))
		bn2 := nn.Named("bn2", bld.bn(width))
		conv3 := nn.Named("conv3", bld.conv(width, out, 1, 1, 0, false))
		bn3 := nn.Named("bn3", bld.bn(out))
		blk.kind = KindBottleneck
		blk.children = []nn.Module{conv1, bn1, conv2, bn2, conv3, bn3, relu}
		body = []nn.Module{conv1, bn1, relu, conv2, bn2, relu, conv3, bn3}
	} else {
		conv1 := nn.Named("conv1", bld.conv(in, width, 3, stride, 1, false))
		bn1 := nn.Named("bn1", bld.bn(width))
		conv2 := nn.Named("conv2", bld.conv(width, width, 3, 1, 1, false))
		bn2 := nn.Named("bn2", bld.bn(width))
		blk.children = []nn.Module{conv1, bn1, relu, conv2, bn2}
		body = []nn.Module{conv1, bn1, relu, conv2, bn2}
	}
	blk.res = &nn.Residual{Body: nn.NewSequential(body...)}

	if stride != 1 || in != out {
		ds := nn.Named("downsample", nn.NewSequential(bld.conv(in, out, 1, stride, 0, false), bld.bn(out)))
		blk.res.Shortcut = ds
		blk.children = append(blk.children, ds)
	}
	return blk
}

func resnetBuilder(bottleneck bool, depths ...int) func() (nn.Module, error) {
	return func() (nn.Module, error) { return ResNet(bottleneck, depths...) }
}

// ResNet builds a four-stage residual network with the given number of
// blocks per stage, using bottleneck blocks when requested.
func ResNet(bottleneck bool, depths ...int) (nn.Module, error) {
	if len(depths) != 4 {
		return nil, fmt.Errorf("resnet needs 4 stage depths, got %d", len(depths))
	}
	var b builder
	model := nn.NewSequential(
		nn.Named("conv1", b.conv(3, 64, 7, 2, 3, false)),
		nn.Named("bn1", b.bn(64)),
		nn.Named("relu", nn.NewReLU()),
		nn.Named("maxpool", b.maxPool(3, 2, 1)),
	)

	expansion := 1
	if bottleneck {
		expansion = 4
	}
	in := 64
	for stage, depth := range depths {
		if depth <= 0 {
			return nil, fmt.Errorf("resnet stage %d has depth %d", stage+1, depth)
		}
		width := 64 << stage
		layer := nn.NewSequential()
		for i := range depth {
			stride := 1
			if i == 0 && stage > 0 {
				stride = 2
			}
			layer.Append(b.residualBlock(bottleneck, in, width, stride))
			in = width * expansion
		}
		model.Append(nn.Named(fmt.Sprintf("layer%d", stage+1), layer))
	}

	model.Append(nn.Named("avgpool", b.adaptive(1, 1)))
	model.Append(nn.Named("flatten", nn.NewFlatten(1)))
	model.Append(nn.Named("fc", b.linear(in, 1000)))
	return b.done(model)
}
