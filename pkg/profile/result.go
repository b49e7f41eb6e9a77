package profile

import (
	"cmp"
	"slices"

	"github.com/samcharles93/opcount/pkg/nn"
)

// Result holds the totals of one Profile run. Only leaf modules contribute.
type Result struct {
	Ops         uint64      `json:"ops"`
	Params      uint64      `json:"params"`
	Input       nn.Shape    `json:"input_shape"`
	Output      nn.Shape    `json:"output_shape"`
	Layers      []LayerStat `json:"layers"`
	Unsupported []nn.Kind   `json:"unsupported,omitempty"`
}

// LayerStat is the tally for one leaf module. Counted is false for modules
// that were not instrumented, either because their kind is free or unknown.
type LayerStat struct {
	Path    string   `json:"path"`
	Kind    nn.Kind  `json:"kind"`
	Ops     uint64   `json:"ops"`
	Params  uint64   `json:"params"`
	Calls   int      `json:"calls"`
	Input   nn.Shape `json:"input_shape,omitempty"`
	Output  nn.Shape `json:"output_shape,omitempty"`
	Counted bool     `json:"counted"`
}

// GFLOPs returns Ops in units of 1e9.
func (r *Result) GFLOPs() float64 { return float64(r.Ops) / 1e9 }

// MParams returns Params in units of 1e6.
func (r *Result) MParams() float64 { return float64(r.Params) / 1e6 }

// KindTotal aggregates the layers of one kind.
type KindTotal struct {
	Kind   nn.Kind `json:"kind"`
	Layers int     `json:"layers"`
	Ops    uint64  `json:"ops"`
	Params uint64  `json:"params"`
}

// ByKind sums the layers per kind, most expensive first.
func (r *Result) ByKind() []KindTotal {
	idx := make(map[nn.Kind]int)
	var out []KindTotal
	for _, l := range r.Layers {
		i, ok := idx[l.Kind]
		if !ok {
			i = len(out)
			idx[l.Kind] = i
			out = append(out, KindTotal{Kind: l.Kind})
		}
		out[i].Layers++
		out[i].Ops += l.Ops
		out[i].Params += l.Params
	}
	slices.SortStableFunc(out, func(a, b KindTotal) int {
		if c := cmp.Compare(b.Ops, a.Ops); c != 0 {
			return c
		}
		return cmp.Compare(a.Kind, b.Kind)
	})
	return out
}
