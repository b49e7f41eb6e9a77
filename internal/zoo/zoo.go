// Package zoo builds reference vision architectures as nn module trees.
// Parameter names follow the torchvision state-dict layout so checkpoints
// exported from PyTorch load without renaming.
package zoo

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/samcharles93/opcount/pkg/nn"
)

var ErrUnknownModel = errors.New("zoo: unknown model")

// Entry describes one buildable architecture.
type Entry struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Input       nn.Shape `json:"input_shape"`

	build func() (nn.Module, error)
}

var entries = map[string]Entry{
	"mlp":          {Description: "three-layer perceptron for 28x28 inputs", Input: nn.Shape{1, 1, 28, 28}, build: MLP},
	"lenet5":       {Description: "LeNet-5 with max pooling", Input: nn.Shape{1, 1, 28, 28}, build: LeNet5},
	"alexnet":      {Description: "AlexNet (torchvision layout)", Input: nn.Shape{1, 3, 224, 224}, build: AlexNet},
	"vgg11":        {Description: "VGG-11 without batch norm", Input: nn.Shape{1, 3, 224, 224}, build: vggBuilder(vgg11)},
	"vgg16":        {Description: "VGG-16 without batch norm", Input: nn.Shape{1, 3, 224, 224}, build: vggBuilder(vgg16)},
	"resnet18":     {Description: "ResNet-18", Input: nn.Shape{1, 3, 224, 224}, build: resnetBuilder(false, 2, 2, 2, 2)},
	"resnet34":     {Description: "ResNet-34", Input: nn.Shape{1, 3, 224, 224}, build: resnetBuilder(false, 3, 4, 6, 3)},
	"resnet50":     {Description: "ResNet-50 (v1.5, stride on the 3x3 conv)", Input: nn.Shape{1, 3, 224, 224}, build: resnetBuilder(true, 3, 4, 6, 3)},
	"mobilenet_v1": {Description: "MobileNet v1, width 1.0", Input: nn.Shape{1, 3, 224, 224}, build: MobileNetV1},
	"dcgan_g":      {Description: "DCGAN generator, 100-d noise to 64x64 RGB", Input: nn.Shape{1, 100, 1, 1}, build: DCGANGenerator},
}

// Names lists the available architectures in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(entries))
}

// Entries lists every architecture in name order.
func Entries() []Entry {
	out := make([]Entry, 0, len(entries))
	for _, name := range Names() {
		out = append(out, Lookup(name))
	}
	return out
}

// Lookup returns the entry for name, or the zero Entry.
func Lookup(name string) Entry {
	e, ok := entries[name]
	if !ok {
		return Entry{}
	}
	e.Name = name
	e.Input = e.Input.Clone()
	return e
}

// Build constructs a fresh instance of the named model and returns it with
// its default input shape.
func Build(name string) (nn.Module, nn.Shape, error) {
	e := Lookup(name)
	if e.build == nil {
		return nil, nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownModel, name, Names())
	}
	m, err := e.build()
	if err != nil {
		return nil, nil, fmt.Errorf("build %s: %w", name, err)
	}
	return m, e.Input, nil
}
