package zoo

import (
	"github.com/samcharles93/opcount/pkg/nn"
)

func MLP() (nn.Module, error) {
	var b builder
	return b.done(nn.NewSequential(
		nn.NewFlatten(1),
		b.linear(28*28, 256), nn.NewReLU(),
		b.linear(256, 128), nn.NewReLU(),
		b.linear(128, 10),
	))
}

func LeNet5() (nn.Module, error) {
	var b builder
	features := nn.NewSequential(
		b.conv(1, 6, 5, 1, 2, true), nn.NewReLU(), b.maxPool(2, 2, 0),
		b.conv(6, 16, 5, 1, 0, true), nn.NewReLU(), b.maxPool(2, 2, 0),
	)
	classifier := nn.NewSequential(
		b.linear(16*5*5, 120), nn.NewReLU(),
		b.linear(120, 84), nn.NewReLU(),
		b.linear(84, 10),
	)
	return b.done(nn.NewSequential(
		nn.Named("features", features),
		nn.Named("flatten", nn.NewFlatten(1)),
		nn.Named("classifier", classifier),
	))
}

func AlexNet() (nn.Module, error) {
	var b builder
	features := nn.NewSequential(
		b.conv(3, 64, 11, 4, 2, true), nn.NewReLU(), b.maxPool(3, 2, 0),
		b.conv(64, 192, 5, 1, 2, true), nn.NewReLU(), b.maxPool(3, 2, 0),
		b.conv(192, 384, 3, 1, 1, true), nn.NewReLU(),
		b.conv(384, 256, 3, 1, 1, true), nn.NewReLU(),
		b.conv(256, 256, 3, 1, 1, true), nn.NewReLU(), b.maxPool(3, 2, 0),
	)
	classifier := nn.NewSequential(
		b.dropout(0.5), b.linear(256*6*6, 4096), nn.NewReLU(),
		b.dropout(0.5), b.linear(4096, 4096), nn.NewReLU(),
		b.linear(4096, 1000),
	)
	return b.done(nn.NewSequential(
		nn.Named("features", features),
		nn.Named("avgpool", b.adaptive(6, 6)),
		nn.Named("flatten", nn.NewFlatten(1)),
		nn.Named("classifier", classifier),
	))
}

// VGG layer plans: channel counts, with 0 marking a 2x2 max pool.
var (
	vgg11 = []int{64, 0, 128, 0, 256, 256, 0, 512, 512, 0, 512, 512, 0}
	vgg16 = []int{64, 64, 0, 128, 128, 0, 256, 256, 256, 0, 512, 512, 512, 0, 512, 512, 512, 0}
)

func vggBuilder(plan []int) func() (nn.Module, error) {
	return func() (nn.Module, error) { return VGG(plan) }
}

// VGG builds the torchvision VGG layout for the given plan.
func VGG(plan []int) (nn.Module, error) {
	var b builder
	features := nn.NewSequential()
	in := 3
	for _, c := range plan {
		if c == 0 {
			features.Append(b.maxPool(2, 2, 0))
			continue
		}
		features.Append(b.conv(in, c, 3, 1, 1, true))
		features.Append(nn.NewReLU())
		in = c
	}
	classifier := nn.NewSequential(
		b.linear(512*7*7, 4096), nn.NewReLU(), b.dropout(0.5),
		b.linear(4096, 4096), nn.NewReLU(), b.dropout(0.5),
		b.linear(4096, 1000),
	)
	return b.done(nn.NewSequential(
		nn.Named("features", features),
		nn.Named("avgpool", b.adaptive(7, 7)),
		nn.Named("flatten", nn.NewFlatten(1)),
		nn.Named("classifier", classifier),
	))
}

// MobileNetV1 stacks depthwise-separable blocks after a strided stem.
func MobileNetV1() (nn.Module, error) {
	var b builder
	convBN := func(in, out, stride int) *nn.Sequential {
		return nn.NewSequential(b.conv(in, out, 3, stride, 1, false), b.bn(out), nn.NewReLU())
	}
	separable := func(in, out, stride int) *nn.Sequential {
		return nn.NewSequential(
			b.convGroups(in, in, 3, stride, 1, in, false), b.bn(in), nn.NewReLU(),
			b.conv(in, out, 1, 1, 0, false), b.bn(out), nn.NewReLU(),
		)
	}

	model := nn.NewSequential(convBN(3, 32, 2))
	plan := []struct{ in, out, stride int }{
		{32, 64, 1}, {64, 128, 2}, {128, 128, 1}, {128, 256, 2}, {256, 256, 1}, {256, 512, 2},
		{512, 512, 1}, {512, 512, 1}, {512, 512, 1}, {512, 512, 1}, {512, 512, 1},
		{512, 1024, 2}, {1024, 1024, 1},
	}
	for _, p := range plan {
		model.Append(separable(p.in, p.out, p.stride))
	}
	model.Append(nn.Named("pool", b.adaptive(1, 1)))
	model.Append(nn.Named("flatten", nn.NewFlatten(1)))
	model.Append(nn.Named("fc", b.linear(1024, 1000)))
	return b.done(model)
}

// DCGANGenerator maps a [N 100 1 1] noise tensor to [N 3 64 64]. The final
// tanh is omitted; it has no counter and carries no parameters.
func DCGANGenerator() (nn.Module, error) {
	var b builder
	const nz, ngf = 100, 64
	return b.done(nn.NewSequential(
		b.deconv(nz, ngf*8, 4, 1, 0, false), b.bn(ngf*8), nn.NewReLU(),
		b.deconv(ngf*8, ngf*4, 4, 2, 1, false), b.bn(ngf*4), nn.NewReLU(),
		b.deconv(ngf*4, ngf*2, 4, 2, 1, false), b.bn(ngf*2), nn.NewReLU(),
		b.deconv(ngf*2, ngf, 4, 2, 1, false), b.bn(ngf), nn.NewReLU(),
		b.deconv(ngf, 3, 4, 2, 1, false),
	))
}
