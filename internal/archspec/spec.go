// Package archspec reads declarative model descriptions from YAML or JSON
// and builds them into nn module trees.
//
//	name: tiny-cnn
//	input: [1, 3, 32, 32]
//	layers:
//	  - {kind: Conv2d, in: 3, out: 16, kernel: 3, padding: 1}
//	  - {kind: BatchNorm2d, features: 16}
//	  - {kind: ReLU}
//	  - {kind: MaxPool2d, kernel: 2}
//	  - {kind: Flatten}
//	  - {kind: Linear, in: 4096, out: 10}
package archspec

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/opcount/pkg/nn"
)

var (
	ErrUnknownKind   = errors.New("archspec: unknown layer kind")
	ErrInvalidLayer  = errors.New("archspec: invalid layer")
	ErrUnknownFormat = errors.New("archspec: unknown file format")
)

// Spec is a whole model description.
type Spec struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Input       Ints    `yaml:"input" json:"input"`
	Layers      []Layer `yaml:"layers" json:"layers"`
}

// Layer describes one module. Which fields apply depends on Kind; unused
// fields are ignored.
type Layer struct {
	Kind   string `yaml:"kind" json:"kind"`
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
	Repeat int    `yaml:"repeat,omitempty" json:"repeat,omitempty"`

	// Linear and convolutions.
	In            int   `yaml:"in,omitempty" json:"in,omitempty"`
	Out           int   `yaml:"out,omitempty" json:"out,omitempty"`
	Kernel        Ints  `yaml:"kernel,omitempty" json:"kernel,omitempty"`
	Stride        Ints  `yaml:"stride,omitempty" json:"stride,omitempty"`
	Padding       Ints  `yaml:"padding,omitempty" json:"padding,omitempty"`
	Dilation      Ints  `yaml:"dilation,omitempty" json:"dilation,omitempty"`
	OutputPadding Ints  `yaml:"output_padding,omitempty" json:"output_padding,omitempty"`
	Groups        int   `yaml:"groups,omitempty" json:"groups,omitempty"`
	Bias          *bool `yaml:"bias,omitempty" json:"bias,omitempty"`

	// BatchNorm2d.
	Features int     `yaml:"features,omitempty" json:"features,omitempty"`
	Eps      float32 `yaml:"eps,omitempty" json:"eps,omitempty"`

	// Dropout probability.
	P float32 `yaml:"p,omitempty" json:"p,omitempty"`
	// AdaptiveAvgPool2d output size.
	Output Ints `yaml:"output,omitempty" json:"output,omitempty"`
	// Flatten start dimension, 1 when unset.
	Start *int `yaml:"start,omitempty" json:"start,omitempty"`

	// Containers.
	Layers   []Layer `yaml:"layers,omitempty" json:"layers,omitempty"`
	Body     []Layer `yaml:"body,omitempty" json:"body,omitempty"`
	Shortcut []Layer `yaml:"shortcut,omitempty" json:"shortcut,omitempty"`
}

// Ints is a list of ints that also accepts a single scalar.
type Ints []int

func (v *Ints) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var n int
		if err := node.Decode(&n); err != nil {
			return err
		}
		*v = Ints{n}
		return nil
	}
	var list []int
	if err := node.Decode(&list); err != nil {
		return err
	}
	*v = list
	return nil
}

func (v *Ints) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '[' {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = Ints{n}
		return nil
	}
	var list []int
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*v = list
	return nil
}

// Format is the encoding of a spec file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Parse decodes a spec. Unknown fields are rejected so typos surface early.
func Parse(data []byte, format Format) (*Spec, error) {
	var s Spec
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("archspec: decode yaml: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("archspec: decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if len(s.Layers) == 0 {
		return nil, fmt.Errorf("%w: spec %q has no layers", ErrInvalidLayer, s.Name)
	}
	return &s, nil
}

// Load reads and parses the spec file at path.
func Load(path string) (*Spec, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// InputShape returns the declared input shape, or nil when none was given.
func (s *Spec) InputShape() nn.Shape {
	if len(s.Input) == 0 {
		return nil
	}
	return nn.Shape(append([]int(nil), s.Input...))
}
