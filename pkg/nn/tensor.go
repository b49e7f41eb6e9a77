package nn

// Tensor is a float32 tensor. A tensor with nil Data is a meta tensor: it only
// carries a shape and forward passes over it only propagate shapes.
type Tensor struct {
	Shape Shape
	Data  []float32
}

// Meta returns a data-less tensor of the given shape.
func Meta(shape Shape) *Tensor {
	return &Tensor{Shape: shape.Clone()}
}

// Zeros returns a zero-filled tensor of the given shape.
func Zeros(shape Shape) *Tensor {
	return &Tensor{
		Shape: shape.Clone(),
		Data:  make([]float32, shape.Numel()),
	}
}

// IsMeta reports whether t carries no data.
func (t *Tensor) IsMeta() bool { return t.Data == nil }

// Numel returns the number of elements.
func (t *Tensor) Numel() int64 { return t.Shape.Numel() }

// like returns a tensor of shape with the same meta-ness as t.
func (t *Tensor) like(shape Shape) *Tensor {
	if t.IsMeta() {
		return Meta(shape)
	}
	return Zeros(shape)
}
