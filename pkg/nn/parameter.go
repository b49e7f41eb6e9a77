package nn

import (
	"fmt"

	"github.com/samcharles93/opcount/internal/tensor"
)

// Init selects how Materialize fills a parameter.
type Init uint8

const (
	InitRandom Init = iota
	InitZeros
	InitOnes
)

// Parameter is a named trainable tensor. Data stays nil until the parameter
// is materialized or loaded, so large models can be described without
// allocating their weights.
type Parameter struct {
	Name  string
	Shape Shape
	Init  Init
	Data  []float32
}

func newParameter(name string, init Init, shape ...int) *Parameter {
	return &Parameter{Name: name, Shape: Shape(shape), Init: init}
}

// Numel returns the number of scalar values in the parameter.
func (p *Parameter) Numel() int64 { return p.Shape.Numel() }

// Materialized reports whether the parameter holds data.
func (p *Parameter) Materialized() bool { return p.Data != nil }

func (p *Parameter) materialize(seed int64) {
	p.Data = make([]float32, p.Numel())
	switch p.Init {
	case InitRandom:
		tensor.FillRand(p.Data, seed)
	case InitOnes:
		for i := range p.Data {
			p.Data[i] = 1
		}
	}
}

func (p *Parameter) data() ([]float32, error) {
	if p.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotMaterialized, p.Name)
	}
	return p.Data, nil
}
