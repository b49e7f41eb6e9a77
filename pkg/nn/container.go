package nn

import (
	"context"
	"strconv"
)

// Sequential runs its children in order, feeding each output to the next.
type Sequential struct {
	Base
	layers []Module
}

// NewSequential builds a container; unnamed children are named by index.
func NewSequential(layers ...Module) *Sequential {
	s := &Sequential{}
	for _, l := range layers {
		s.Append(l)
	}
	return s
}

// Append adds m as the last child, naming it by index when unnamed.
func (s *Sequential) Append(m Module) {
	if m.Name() == "" {
		m.SetName(strconv.Itoa(len(s.layers)))
	}
	s.layers = append(s.layers, m)
}

func (s *Sequential) Kind() Kind         { return KindSequential }
func (s *Sequential) Children() []Module { return s.layers }
func (s *Sequential) Len() int           { return len(s.layers) }

func (s *Sequential) Forward(ctx context.Context, x *Tensor) (*Tensor, error) {
	var err error
	for _, l := range s.layers {
		if x, err = Call(ctx, l, x); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// Residual computes Body(x) + Shortcut(x); a nil Shortcut is the identity.
type Residual struct {
	Base
	Body     Module
	Shortcut Module
}

func NewResidual(body, shortcut Module) *Residual {
	if body.Name() == "" {
		body.SetName("body")
	}
	if shortcut != nil && shortcut.Name() == "" {
		shortcut.SetName("shortcut")
	}
	return &Residual{Body: body, Shortcut: shortcut}
}

func (r *Residual) Kind() Kind { return KindResidual }

func (r *Residual) Children() []Module {
	if r.Shortcut == nil {
		return []Module{r.Body}
	}
	return []Module{r.Body, r.Shortcut}
}

func (r *Residual) Forward(ctx context.Context, x *Tensor) (*Tensor, error) {
	y, err := Call(ctx, r.Body, x)
	if err != nil {
		return nil, err
	}
	skip := x
	if r.Shortcut != nil {
		if skip, err = Call(ctx, r.Shortcut, x); err != nil {
			return nil, err
		}
	}
	if !y.Shape.Equal(skip.Shape) {
		return nil, shapeErr("residual branches disagree: %s vs %s", y.Shape, skip.Shape)
	}
	if y.IsMeta() || skip.IsMeta() {
		return Meta(y.Shape), nil
	}
	out := &Tensor{Shape: y.Shape.Clone(), Data: make([]float32, len(y.Data))}
	for i := range out.Data {
		out.Data[i] = y.Data[i] + skip.Data[i]
	}
	return out, nil
}
