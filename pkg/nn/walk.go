package nn

// Walk visits m and its descendants in pre-order. A module reachable through
// several parents is visited once, under the first path that reaches it.
// Paths join child names with dots; the root path is empty.
func Walk(m Module, fn func(path string, m Module)) {
	seen := make(map[Module]bool)
	var visit func(path string, m Module)
	visit = func(path string, m Module) {
		if m == nil || seen[m] {
			return
		}
		seen[m] = true
		fn(path, m)
		for _, c := range m.Children() {
			visit(joinPath(path, c.Name()), c)
		}
	}
	visit("", m)
}

// IsLeaf reports whether m has no children.
func IsLeaf(m Module) bool { return len(m.Children()) == 0 }

// Leaf is a leaf module together with its path.
type Leaf struct {
	Path   string
	Module Module
}

// Leaves returns the distinct leaf modules of m in pre-order.
func Leaves(m Module) []Leaf {
	var out []Leaf
	Walk(m, func(path string, m Module) {
		if IsLeaf(m) {
			out = append(out, Leaf{Path: path, Module: m})
		}
	})
	return out
}

// NumParams counts the scalars in m's own parameters.
func NumParams(m Module) int64 {
	var n int64
	for _, p := range m.Parameters() {
		n += p.Numel()
	}
	return n
}

// TotalParams counts the scalars in every distinct parameter of the tree.
func TotalParams(m Module) int64 {
	var n int64
	for _, np := range NamedParameters(m) {
		n += np.Param.Numel()
	}
	return n
}

// NamedParameter is a parameter with its dotted path, e.g. "layer1.0.conv1.weight".
type NamedParameter struct {
	Name  string
	Param *Parameter
}

// NamedParameters lists the distinct parameters of the tree in pre-order.
func NamedParameters(m Module) []NamedParameter {
	var out []NamedParameter
	seen := make(map[*Parameter]bool)
	Walk(m, func(path string, m Module) {
		for _, p := range m.Parameters() {
			if seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, NamedParameter{Name: joinPath(path, p.Name), Param: p})
		}
	})
	return out
}

// Buffer is named module state that is not a parameter, such as BatchNorm
// running statistics. Data aliases the module's storage; it is nil for state
// that is known by name only.
type Buffer struct {
	Name string
	Data []float32
}

// BufferOwner is implemented by modules with buffers.
type BufferOwner interface {
	Buffers() []Buffer
}

// NamedBuffers lists the buffers of every distinct module in pre-order, with
// dotted names like "bn1.running_mean".
func NamedBuffers(m Module) []Buffer {
	var out []Buffer
	Walk(m, func(path string, m Module) {
		bo, ok := m.(BufferOwner)
		if !ok {
			return
		}
		for _, b := range bo.Buffers() {
			out = append(out, Buffer{Name: joinPath(path, b.Name), Data: b.Data})
		}
	})
	return out
}

// SetTraining sets the mode of every module in the tree.
func SetTraining(m Module, training bool) {
	Walk(m, func(_ string, m Module) { m.SetTraining(training) })
}

// Materialize allocates and initialises every parameter that has no data yet,
// deriving per-parameter seeds from seed. It returns the parameters it
// allocated so callers can Release them afterwards.
func Materialize(m Module, seed int64) []*Parameter {
	var out []*Parameter
	for i, np := range NamedParameters(m) {
		if np.Param.Materialized() {
			continue
		}
		np.Param.materialize(seed + int64(i)*7919)
		out = append(out, np.Param)
	}
	return out
}

// Release drops the data of the given parameters.
func Release(params []*Parameter) {
	for _, p := range params {
		p.Data = nil
	}
}

func joinPath(prefix, name string) string {
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	default:
		return prefix + "." + name
	}
}
