package zoo

import (
	"context"
	"errors"
	"testing"

	"github.com/samcharles93/opcount/pkg/nn"
	"github.com/samcharles93/opcount/pkg/profile"
)

func TestParameterCounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		params int64
		output nn.Shape
	}{
		{"mlp", 235146, nn.Shape{1, 10}},
		{"lenet5", 61706, nn.Shape{1, 10}},
		{"alexnet", 61100840, nn.Shape{1, 1000}},
		{"vgg11", 132863336, nn.Shape{1, 1000}},
		{"vgg16", 138357544, nn.Shape{1, 1000}},
		{"resnet18", 11689512, nn.Shape{1, 1000}},
		{"resnet34", 21797672, nn.Shape{1, 1000}},
		{"resnet50", 25557032, nn.Shape{1, 1000}},
		{"mobilenet_v1", 4231976, nn.Shape{1, 1000}},
		{"dcgan_g", 3576704, nn.Shape{1, 3, 64, 64}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m, input, err := Build(tc.name)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if got := nn.TotalParams(m); got != tc.params {
				t.Fatalf("params: got %d want %d", got, tc.params)
			}
			out, err := nn.Call(context.Background(), m, nn.Meta(input))
			if err != nil {
				t.Fatalf("forward: %v", err)
			}
			if !out.Shape.Equal(tc.output) {
				t.Fatalf("output shape: got %s want %s", out.Shape, tc.output)
			}
		})
	}
}

func TestNamesCoverEntries(t *testing.T) {
	t.Parallel()

	names := Names()
	if len(names) != 10 {
		t.Fatalf("expected 10 models, got %v", names)
	}
	for i, e := range Entries() {
		if e.Name != names[i] || len(e.Input) == 0 || e.Description == "" {
			t.Fatalf("incomplete entry %d: %+v", i, e)
		}
	}
}

func TestBuildUnknown(t *testing.T) {
	t.Parallel()

	if _, _, err := Build("resnet9000"); !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}

func TestBuildReturnsFreshInstances(t *testing.T) {
	t.Parallel()

	a, inA, err := Build("lenet5")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b, _, err := Build("lenet5")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if a == b {
		t.Fatal("Build returned the same instance twice")
	}
	inA[0] = 99
	if Lookup("lenet5").Input[0] != 1 {
		t.Fatal("caller mutated the registered input shape")
	}
}

func TestResNetParameterNames(t *testing.T) {
	t.Parallel()

	m, _, err := Build("resnet18")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	names := make(map[string]bool)
	for _, np := range nn.NamedParameters(m) {
		names[np.Name] = true
	}
	for _, want := range []string{
		"conv1.weight", "bn1.weight", "layer1.0.conv1.weight", "layer1.1.bn2.bias",
		"layer2.0.downsample.0.weight", "layer2.0.downsample.1.weight", "layer4.1.conv2.weight",
		"fc.weight", "fc.bias",
	} {
		if !names[want] {
			t.Errorf("missing parameter %q", want)
		}
	}
	if names["layer1.0.downsample.0.weight"] {
		t.Error("layer1 blocks should not downsample")
	}
}

func TestResNetBadDepths(t *testing.T) {
	t.Parallel()

	if _, err := ResNet(false, 2, 2); err == nil {
		t.Fatal("expected error for three stages")
	}
	if _, err := ResNet(false, 2, 0, 2, 2); err == nil {
		t.Fatal("expected error for empty stage")
	}
}

func TestVGGBadPlan(t *testing.T) {
	t.Parallel()

	if _, err := VGG([]int{64, -1}); !errors.Is(err, nn.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestProfileOps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ops  uint64
	}{
		{"lenet5", 494138},
		{"resnet18", 1823691800},
	}
	for _, tc := range tests {
		m, input, err := Build(tc.name)
		if err != nil {
			t.Fatalf("Build(%s): %v", tc.name, err)
		}
		res, err := profile.Profile(context.Background(), m, input, profile.Options{Quiet: true})
		if err != nil {
			t.Fatalf("Profile(%s): %v", tc.name, err)
		}
		if res.Ops != tc.ops {
			t.Errorf("%s ops: got %d want %d", tc.name, res.Ops, tc.ops)
		}
		if len(res.Unsupported) != 0 {
			t.Errorf("%s: unexpected unsupported kinds %v", tc.name, res.Unsupported)
		}
	}
}

func TestResNetSharedReLUCountsEveryCall(t *testing.T) {
	t.Parallel()

	m, input, err := Build("resnet50")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	res, err := profile.Profile(context.Background(), m, input, profile.Options{Quiet: true})
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	for _, l := range res.Layers {
		if l.Path == "layer1.0.relu" && l.Calls != 3 {
			t.Fatalf("bottleneck relu should run three times, got %d", l.Calls)
		}
	}
	if res.Params != 25557032 {
		t.Fatalf("profile params: got %d", res.Params)
	}
}
