package profile

import "github.com/samcharles93/opcount/pkg/nn"

// A multiply-add counts as one operation throughout.

func params(m nn.Module) uint64 { return uint64(nn.NumParams(m)) }

func numel(s nn.Shape) uint64 { return uint64(s.Numel()) }

// countConv2d charges every output element Cin/groups*kh*kw multiply-adds
// plus one bias add.
func countConv2d(m nn.Module, _, out nn.Shape) (uint64, uint64) {
	c, ok := m.(*nn.Conv2d)
	if !ok {
		return 0, params(m)
	}
	perElem := uint64(c.InChannels / c.Groups * c.Kernel[0] * c.Kernel[1])
	if c.Bias != nil {
		perElem++
	}
	return numel(out) * perElem, params(m)
}

// countConvTranspose2d charges every input element the Cout/groups*kh*kw
// multiply-adds it scatters, plus one bias add per output element.
func countConvTranspose2d(m nn.Module, in, out nn.Shape) (uint64, uint64) {
	c, ok := m.(*nn.ConvTranspose2d)
	if !ok {
		return 0, params(m)
	}
	ops := numel(in) * uint64(c.OutChannels/c.Groups*c.Kernel[0]*c.Kernel[1])
	if c.Bias != nil {
		ops += numel(out)
	}
	return ops, params(m)
}

// countBatchNorm charges a subtraction and a division per element.
func countBatchNorm(m nn.Module, in, _ nn.Shape) (uint64, uint64) {
	return 2 * numel(in), params(m)
}

func countActivation(m nn.Module, in, _ nn.Shape) (uint64, uint64) {
	return numel(in), params(m)
}

type windowed interface {
	KernelVolume() int64
}

func countMaxPool(m nn.Module, _, out nn.Shape) (uint64, uint64) {
	p, ok := m.(windowed)
	if !ok {
		return 0, params(m)
	}
	return uint64(p.KernelVolume()) * numel(out), params(m)
}

// countAvgPool charges the window additions plus one division per output.
func countAvgPool(m nn.Module, _, out nn.Shape) (uint64, uint64) {
	p, ok := m.(windowed)
	if !ok {
		return 0, params(m)
	}
	return uint64(p.KernelVolume()+1) * numel(out), params(m)
}

func countAdaptiveAvgPool(m nn.Module, in, out nn.Shape) (uint64, uint64) {
	a, ok := m.(*nn.AdaptiveAvgPool2d)
	if !ok {
		return 0, params(m)
	}
	w := a.Window(in)
	return uint64(w[0]*w[1]+1) * numel(out), params(m)
}

// countLinear charges in multiplications and in-1 additions per output.
func countLinear(m nn.Module, _, out nn.Shape) (uint64, uint64) {
	l, ok := m.(*nn.Linear)
	if !ok {
		return 0, params(m)
	}
	return uint64(2*l.InFeatures-1) * numel(out), params(m)
}

// countSoftmax charges n exponentials, n-1 additions and n divisions per row.
func countSoftmax(m nn.Module, in, _ nn.Shape) (uint64, uint64) {
	n := uint64(in.Dim(-1))
	rows := numel(in) / n
	return rows * (3*n - 1), params(m)
}
