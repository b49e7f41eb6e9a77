package nn

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustConv(t *testing.T, cfg Conv2dConfig) *Conv2d {
	t.Helper()
	c, err := NewConv2d(cfg)
	if err != nil {
		t.Fatalf("NewConv2d: %v", err)
	}
	return c
}

func fill(v float32, n int64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestParseShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  Shape
		ok    bool
	}{
		{"1,3,224,224", Shape{1, 3, 224, 224}, true},
		{"1x3x32x32", Shape{1, 3, 32, 32}, true},
		{"[2, 10]", Shape{2, 10}, true},
		{"8", Shape{8}, true},
		{"", nil, false},
		{"1,0,3", nil, false},
		{"1,-2", nil, false},
		{"a,b", nil, false},
		{"4294967296,4294967296", nil, false},
		{"3,4611686018427387904", nil, false},
		{"3037000499,3037000499", Shape{3037000499, 3037000499}, true},
	}
	for _, tc := range tests {
		got, err := ParseShape(tc.input)
		if tc.ok != (err == nil) {
			t.Fatalf("ParseShape(%q): unexpected error state %v", tc.input, err)
		}
		if !tc.ok {
			if !errors.Is(err, ErrInvalidShape) {
				t.Fatalf("ParseShape(%q): expected ErrInvalidShape, got %v", tc.input, err)
			}
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("ParseShape(%q) mismatch (-want +got):\n%s", tc.input, diff)
		}
	}
}

func TestShapeHelpers(t *testing.T) {
	t.Parallel()

	s := Shape{2, 3, 4}
	if s.Numel() != 24 {
		t.Fatalf("Numel: got %d", s.Numel())
	}
	if s.Dim(-1) != 4 || s.Dim(0) != 2 {
		t.Fatalf("Dim: got %d %d", s.Dim(-1), s.Dim(0))
	}
	c := s.Clone()
	c[0] = 9
	if s[0] != 2 {
		t.Fatal("Clone aliases the original")
	}
	if s.String() != "[2 3 4]" {
		t.Fatalf("String: got %q", s.String())
	}
	if (Shape{}).Numel() != 0 {
		t.Fatal("empty shape should have no elements")
	}
}

func TestConv2dOutputShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Conv2dConfig
		in   Shape
		want Shape
	}{
		{"same padding", Conv2dConfig{InChannels: 3, OutChannels: 16, Kernel: [2]int{3, 3}, Padding: [2]int{1, 1}}, Shape{1, 3, 32, 32}, Shape{1, 16, 32, 32}},
		{"stride 2", Conv2dConfig{InChannels: 3, OutChannels: 64, Kernel: [2]int{7, 7}, Stride: [2]int{2, 2}, Padding: [2]int{3, 3}}, Shape{2, 3, 224, 224}, Shape{2, 64, 112, 112}},
		{"dilation", Conv2dConfig{InChannels: 1, OutChannels: 1, Kernel: [2]int{3, 3}, Dilation: [2]int{2, 2}}, Shape{1, 1, 10, 10}, Shape{1, 1, 6, 6}},
		{"unbatched", Conv2dConfig{InChannels: 4, OutChannels: 8, Kernel: [2]int{1, 1}, Groups: 4}, Shape{4, 5, 5}, Shape{8, 5, 5}},
	}
	for _, tc := range tests {
		c := mustConv(t, tc.cfg)
		got, err := c.OutputShape(tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestConv2dRejectsBadConfig(t *testing.T) {
	t.Parallel()

	bad := []Conv2dConfig{
		{InChannels: 0, OutChannels: 1, Kernel: [2]int{1, 1}},
		{InChannels: 3, OutChannels: 4, Kernel: [2]int{1, 1}, Groups: 2},
		{InChannels: 2, OutChannels: 2, Kernel: [2]int{0, 1}},
	}
	for _, cfg := range bad {
		if _, err := NewConv2d(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("NewConv2d(%+v): expected ErrInvalidConfig, got %v", cfg, err)
		}
	}
}

func TestConv2dForwardValues(t *testing.T) {
	t.Parallel()

	c := mustConv(t, Conv2dConfig{InChannels: 1, OutChannels: 1, Kernel: [2]int{3, 3}, Padding: [2]int{1, 1}, Bias: true})
	c.Weight.Data = fill(1, 9)
	c.Bias.Data = []float32{0.5}

	x := &Tensor{Shape: Shape{1, 1, 3, 3}, Data: fill(1, 9)}
	out, err := c.Forward(context.Background(), x)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	want := []float32{4.5, 6.5, 4.5, 6.5, 9.5, 6.5, 4.5, 6.5, 4.5}
	if diff := cmp.Diff(want, out.Data); diff != "" {
		t.Fatalf("conv output mismatch (-want +got):\n%s", diff)
	}
}

func TestConv2dForwardNeedsMaterializedWeights(t *testing.T) {
	t.Parallel()

	c := mustConv(t, Conv2dConfig{InChannels: 1, OutChannels: 1, Kernel: [2]int{1, 1}})
	_, err := c.Forward(context.Background(), Zeros(Shape{1, 1, 2, 2}))
	if !errors.Is(err, ErrNotMaterialized) {
		t.Fatalf("expected ErrNotMaterialized, got %v", err)
	}
}

func TestConvTranspose2dForward(t *testing.T) {
	t.Parallel()

	c, err := NewConvTranspose2d(ConvTranspose2dConfig{
		Conv2dConfig: Conv2dConfig{InChannels: 1, OutChannels: 1, Kernel: [2]int{2, 2}, Stride: [2]int{2, 2}},
	})
	if err != nil {
		t.Fatalf("NewConvTranspose2d: %v", err)
	}
	c.Weight.Data = fill(1, 4)
	x := &Tensor{Shape: Shape{1, 1, 2, 2}, Data: fill(1, 4)}
	out, err := c.Forward(context.Background(), x)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if !out.Shape.Equal(Shape{1, 1, 4, 4}) {
		t.Fatalf("shape: got %s", out.Shape)
	}
	if diff := cmp.Diff(fill(1, 16), out.Data); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}

	// DCGAN-style upsampling: 4x4 kernel, stride 2, padding 1 doubles H and W.
	up, err := NewConvTranspose2d(ConvTranspose2dConfig{
		Conv2dConfig: Conv2dConfig{InChannels: 8, OutChannels: 4, Kernel: [2]int{4, 4}, Stride: [2]int{2, 2}, Padding: [2]int{1, 1}},
	})
	if err != nil {
		t.Fatalf("NewConvTranspose2d: %v", err)
	}
	got, err := up.OutputShape(Shape{1, 8, 16, 16})
	if err != nil || !got.Equal(Shape{1, 4, 32, 32}) {
		t.Fatalf("OutputShape: got %s err %v", got, err)
	}
}

func TestLinearForward(t *testing.T) {
	t.Parallel()

	l, err := NewLinear(2, 2, true)
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	l.Weight.Data = []float32{1, 2, 3, 4}
	l.Bias.Data = []float32{1, 1}

	out, err := l.Forward(context.Background(), &Tensor{Shape: Shape{2, 2}, Data: []float32{1, 1, 0, 1}})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if diff := cmp.Diff([]float32{4, 8, 3, 5}, out.Data); diff != "" {
		t.Fatalf("linear output mismatch (-want +got):\n%s", diff)
	}

	if _, err := l.Forward(context.Background(), Meta(Shape{1, 3})); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestPooling(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mp, err := NewMaxPool(PoolConfig{Dims: 2, Kernel: []int{2}})
	if err != nil {
		t.Fatalf("NewMaxPool: %v", err)
	}
	if mp.Kind() != KindMaxPool2d {
		t.Fatalf("kind: got %s", mp.Kind())
	}
	x := &Tensor{Shape: Shape{1, 1, 4, 4}, Data: make([]float32, 16)}
	for i := range x.Data {
		x.Data[i] = float32(i + 1)
	}
	out, err := mp.Forward(ctx, x)
	if err != nil {
		t.Fatalf("maxpool Forward: %v", err)
	}
	if diff := cmp.Diff([]float32{6, 8, 14, 16}, out.Data); diff != "" {
		t.Fatalf("maxpool mismatch (-want +got):\n%s", diff)
	}

	ap, err := NewAvgPool(PoolConfig{Dims: 1, Kernel: []int{2}})
	if err != nil {
		t.Fatalf("NewAvgPool: %v", err)
	}
	out, err = ap.Forward(ctx, &Tensor{Shape: Shape{1, 1, 4}, Data: []float32{1, 2, 3, 4}})
	if err != nil {
		t.Fatalf("avgpool Forward: %v", err)
	}
	if diff := cmp.Diff([]float32{1.5, 3.5}, out.Data); diff != "" {
		t.Fatalf("avgpool mismatch (-want +got):\n%s", diff)
	}

	p3, err := NewMaxPool(PoolConfig{Dims: 3, Kernel: []int{2}, Stride: []int{1, 2, 2}})
	if err != nil {
		t.Fatalf("NewMaxPool 3d: %v", err)
	}
	got, err := p3.OutputShape(Shape{2, 4, 8, 8, 8})
	if err != nil || !got.Equal(Shape{2, 4, 7, 4, 4}) {
		t.Fatalf("3d OutputShape: got %s err %v", got, err)
	}

	if _, err := NewAvgPool(PoolConfig{Dims: 2, Kernel: []int{2}, Padding: []int{2}}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected padding > kernel/2 to be rejected, got %v", err)
	}
}

func TestAdaptiveAvgPool2d(t *testing.T) {
	t.Parallel()

	a, err := NewAdaptiveAvgPool2d(1, 1)
	if err != nil {
		t.Fatalf("NewAdaptiveAvgPool2d: %v", err)
	}
	x := &Tensor{Shape: Shape{1, 2, 2, 2}, Data: []float32{1, 2, 3, 4, 10, 10, 10, 10}}
	out, err := a.Forward(context.Background(), x)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if diff := cmp.Diff([]float32{2.5, 10}, out.Data); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if w := a.Window(Shape{1, 512, 7, 7}); w != [2]int{7, 7} {
		t.Fatalf("Window: got %v", w)
	}
}

func TestBatchNormEvalAndTraining(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	bn, err := NewBatchNorm2d(1, 0)
	if err != nil {
		t.Fatalf("NewBatchNorm2d: %v", err)
	}
	Materialize(bn, 1)
	x := &Tensor{Shape: Shape{1, 1, 1, 4}, Data: []float32{1, 2, 3, 4}}

	out, err := bn.Forward(ctx, x)
	if err != nil {
		t.Fatalf("eval Forward: %v", err)
	}
	for i, v := range out.Data {
		if math.Abs(float64(v-x.Data[i])) > 1e-4 {
			t.Fatalf("eval mode should use unit running variance, got %v", out.Data)
		}
	}

	bn.SetTraining(true)
	out, err = bn.Forward(ctx, x)
	if err != nil {
		t.Fatalf("training Forward: %v", err)
	}
	var sum float32
	for _, v := range out.Data {
		sum += v
	}
	if math.Abs(float64(sum)) > 1e-4 {
		t.Fatalf("training mode should centre the batch, got %v", out.Data)
	}
}

func TestActivationsAndDropout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	x := &Tensor{Shape: Shape{4}, Data: []float32{-2, 0.5, 7, 3}}

	out, _ := NewReLU().Forward(ctx, x)
	if diff := cmp.Diff([]float32{0, 0.5, 7, 3}, out.Data); diff != "" {
		t.Fatalf("relu mismatch (-want +got):\n%s", diff)
	}
	out, _ = NewReLU6().Forward(ctx, x)
	if diff := cmp.Diff([]float32{0, 0.5, 6, 3}, out.Data); diff != "" {
		t.Fatalf("relu6 mismatch (-want +got):\n%s", diff)
	}
	if x.Data[0] != -2 {
		t.Fatal("activation modified its input")
	}

	d, err := NewDropout(0.5)
	if err != nil {
		t.Fatalf("NewDropout: %v", err)
	}
	out, _ = d.Forward(ctx, x)
	if diff := cmp.Diff(x.Data, out.Data); diff != "" {
		t.Fatalf("eval dropout should be identity (-want +got):\n%s", diff)
	}
	if _, err := NewDropout(1); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected p=1 to be rejected, got %v", err)
	}

	f := NewFlatten(1)
	out, err = f.Forward(ctx, Meta(Shape{2, 3, 4, 5}))
	if err != nil || !out.Shape.Equal(Shape{2, 60}) {
		t.Fatalf("flatten: got %v err %v", out, err)
	}
}

func TestHooksRunInOrderAndRemove(t *testing.T) {
	t.Parallel()

	relu := NewReLU()
	var order []int
	h1 := relu.Hooks().Register(func(m Module, in, out *Tensor) { order = append(order, 1) })
	h2 := relu.Hooks().Register(func(m Module, in, out *Tensor) { order = append(order, 2) })

	if _, err := Call(context.Background(), relu, Meta(Shape{3})); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2}, order); diff != "" {
		t.Fatalf("hook order mismatch (-want +got):\n%s", diff)
	}

	h1.Remove()
	h1.Remove()
	if relu.Hooks().Len() != 1 {
		t.Fatalf("expected 1 hook after remove, got %d", relu.Hooks().Len())
	}
	h2.Remove()
	if relu.Hooks().Len() != 0 {
		t.Fatalf("expected no hooks, got %d", relu.Hooks().Len())
	}
}

func TestCallReportsModulePath(t *testing.T) {
	t.Parallel()

	fc, err := NewLinear(4, 2, true)
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	model := NewSequential(
		Named("features", NewSequential(NewReLU(), Named("fc", fc))),
	)
	_, err = Call(context.Background(), model, Meta(Shape{1, 3}))
	var fe *ForwardError
	if !errors.As(err, &fe) {
		t.Fatalf("expected ForwardError, got %v", err)
	}
	if fe.Path != "features.fc" || fe.Kind != KindLinear {
		t.Fatalf("unexpected error location: %q %s", fe.Path, fe.Kind)
	}
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch in chain, got %v", err)
	}
}

func TestCallPathOmitsRootName(t *testing.T) {
	t.Parallel()

	fc, err := NewLinear(4, 2, true)
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	model := Named("net", NewSequential(fc))

	var walked []string
	Walk(model, func(path string, m Module) { walked = append(walked, path) })
	if diff := cmp.Diff([]string{"", "0"}, walked); diff != "" {
		t.Fatalf("walk paths mismatch (-want +got):\n%s", diff)
	}

	_, err = Call(context.Background(), model, Meta(Shape{1, 3}))
	var fe *ForwardError
	if !errors.As(err, &fe) {
		t.Fatalf("expected ForwardError, got %v", err)
	}
	if fe.Path != "0" {
		t.Fatalf("error path = %q, want %q", fe.Path, "0")
	}

	_, err = Call(context.Background(), Named("lonely", fc), Meta(Shape{1, 3}))
	if !errors.As(err, &fe) || fe.Path != "" || fe.Kind != KindLinear {
		t.Fatalf("root leaf error = %v", err)
	}
}

func TestCallHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Call(ctx, NewReLU(), Meta(Shape{1}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWalkAndNamedParameters(t *testing.T) {
	t.Parallel()

	shared, err := NewLinear(4, 4, false)
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	head, err := NewLinear(4, 2, true)
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	model := NewSequential(shared, NewReLU(), shared, Named("head", head))

	var paths []string
	Walk(model, func(path string, m Module) { paths = append(paths, path) })
	if diff := cmp.Diff([]string{"", "0", "1", "head"}, paths); diff != "" {
		t.Fatalf("walk paths mismatch (-want +got):\n%s", diff)
	}

	leaves := Leaves(model)
	if len(leaves) != 3 {
		t.Fatalf("expected 3 distinct leaves, got %d", len(leaves))
	}

	var names []string
	for _, np := range NamedParameters(model) {
		names = append(names, np.Name)
	}
	if diff := cmp.Diff([]string{"0.weight", "head.weight", "head.bias"}, names); diff != "" {
		t.Fatalf("parameter names mismatch (-want +got):\n%s", diff)
	}
	if got := TotalParams(model); got != 16+8+2 {
		t.Fatalf("TotalParams: got %d", got)
	}
}

func TestResidualForward(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := NewResidual(NewReLU(), nil)
	out, err := Call(ctx, r, &Tensor{Shape: Shape{2}, Data: []float32{-1, 2}})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if diff := cmp.Diff([]float32{-1, 4}, out.Data); diff != "" {
		t.Fatalf("residual mismatch (-want +got):\n%s", diff)
	}

	proj, err := NewLinear(2, 3, false)
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	bad := NewResidual(NewReLU(), proj)
	if _, err := Call(ctx, bad, Meta(Shape{1, 2})); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected branch mismatch, got %v", err)
	}
}

func TestMaterializeAndRelease(t *testing.T) {
	t.Parallel()

	l, err := NewLinear(3, 2, true)
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	bn, err := NewBatchNorm2d(2, 0)
	if err != nil {
		t.Fatalf("NewBatchNorm2d: %v", err)
	}
	bn.Bias.Data = []float32{7, 7}
	model := NewSequential(l, bn)

	fresh := Materialize(model, 3)
	if len(fresh) != 3 {
		t.Fatalf("expected 3 newly materialized parameters, got %d", len(fresh))
	}
	if bn.Weight.Data[0] != 1 || l.Bias.Data[0] != 0 {
		t.Fatalf("unexpected init values: %v %v", bn.Weight.Data, l.Bias.Data)
	}

	Release(fresh)
	if l.Weight.Materialized() || bn.Weight.Materialized() {
		t.Fatal("released parameters still hold data")
	}
	if bn.Bias.Data[0] != 7 {
		t.Fatal("pre-existing data was released")
	}
}
