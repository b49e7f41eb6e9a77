package safetensors

import (
	"fmt"
	"slices"

	"github.com/samcharles93/opcount/pkg/nn"
)

// Mismatch records a tensor whose shape differs from the parameter it names.
type Mismatch struct {
	Name       string   `json:"name"`
	Parameter  nn.Shape `json:"parameter"`
	Checkpoint []int64  `json:"checkpoint"`
}

// LoadReport summarises how a checkpoint lined up with a model.
type LoadReport struct {
	Loaded []string `json:"loaded"`
	// Buffers are checkpoint tensors that matched a module buffer.
	Buffers    []string   `json:"buffers,omitempty"`
	Missing    []string   `json:"missing,omitempty"`
	Unexpected []string   `json:"unexpected,omitempty"`
	Mismatched []Mismatch `json:"mismatched,omitempty"`
}

// Complete reports whether every parameter was loaded and every tensor used.
func (r *LoadReport) Complete() bool {
	return len(r.Missing) == 0 && len(r.Unexpected) == 0 && len(r.Mismatched) == 0
}

// Source is a set of named tensors, a single File or a sharded Checkpoint.
type Source interface {
	Names() []string
	Tensor(name string) (TensorInfo, bool)
	ReadF32(name string) ([]float32, TensorInfo, error)
}

// LoadInto copies the tensors of src into the parameters of model with the
// same dotted name. Tensors whose element count or shape differs are left
// alone and reported. Tensors naming a module buffer, such as BatchNorm
// running statistics, are copied into it when it holds data and listed under
// Buffers. Anything else is unexpected.
func LoadInto(model nn.Module, src Source) (*LoadReport, error) {
	rep := &LoadReport{}
	used := make(map[string]bool)
	for _, np := range nn.NamedParameters(model) {
		ti, ok := src.Tensor(np.Name)
		if !ok {
			rep.Missing = append(rep.Missing, np.Name)
			continue
		}
		used[np.Name] = true
		if !shapeMatches(np.Param.Shape, ti.Shape) {
			rep.Mismatched = append(rep.Mismatched, Mismatch{Name: np.Name, Parameter: np.Param.Shape.Clone(), Checkpoint: ti.Shape})
			continue
		}
		data, _, err := src.ReadF32(np.Name)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", np.Name, err)
		}
		np.Param.Data = data
		rep.Loaded = append(rep.Loaded, np.Name)
	}
	for _, b := range nn.NamedBuffers(model) {
		ti, ok := src.Tensor(b.Name)
		if !ok {
			continue
		}
		used[b.Name] = true
		if b.Data == nil {
			rep.Buffers = append(rep.Buffers, b.Name)
			continue
		}
		if ti.Numel() != int64(len(b.Data)) {
			rep.Mismatched = append(rep.Mismatched, Mismatch{Name: b.Name, Parameter: nn.Shape{len(b.Data)}, Checkpoint: ti.Shape})
			continue
		}
		data, _, err := src.ReadF32(b.Name)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", b.Name, err)
		}
		copy(b.Data, data)
		rep.Buffers = append(rep.Buffers, b.Name)
	}
	for _, name := range src.Names() {
		if !used[name] {
			rep.Unexpected = append(rep.Unexpected, name)
		}
	}
	slices.Sort(rep.Unexpected)
	return rep, nil
}

func shapeMatches(p nn.Shape, t []int64) bool {
	if len(p) != len(t) {
		return false
	}
	for i := range p {
		if int64(p[i]) != t[i] {
			return false
		}
	}
	return true
}
