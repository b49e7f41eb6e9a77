// Package gguf reads the header of GGUF model files: metadata and the
// name, shape and storage type of every tensor. Tensor data is never read.
package gguf

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
)

const magic = "GGUF"

var (
	ErrCorrupt     = errors.New("gguf: corrupt file")
	ErrUnsupported = errors.New("gguf: unsupported version")
)

type ValueType uint32

const (
	TypeUint8   ValueType = 0
	TypeInt8    ValueType = 1
	TypeUint16  ValueType = 2
	TypeInt16   ValueType = 3
	TypeUint32  ValueType = 4
	TypeInt32   ValueType = 5
	TypeFloat32 ValueType = 6
	TypeBool    ValueType = 7
	TypeString  ValueType = 8
	TypeArray   ValueType = 9
	TypeUint64  ValueType = 10
	TypeInt64   ValueType = 11
	TypeFloat64 ValueType = 12
)

type ArrayValue struct {
	ElemType ValueType
	Values   []any
}

type Value struct {
	Type  ValueType
	Value any
}

// TensorType is the ggml storage type of a tensor.
type TensorType uint32

const (
	TypeF32  TensorType = 0
	TypeF16  TensorType = 1
	TypeQ4_0 TensorType = 2
	TypeQ4_1 TensorType = 3
	TypeQ5_0 TensorType = 6
	TypeQ5_1 TensorType = 7
	TypeQ8_0 TensorType = 8
	TypeQ8_1 TensorType = 9
	TypeQ2_K TensorType = 10
	TypeQ3_K TensorType = 11
	TypeQ4_K TensorType = 12
	TypeQ5_K TensorType = 13
	TypeQ6_K TensorType = 14
	TypeQ8_K TensorType = 15
	TypeI8   TensorType = 24
	TypeI16  TensorType = 25
	TypeI32  TensorType = 26
	TypeI64  TensorType = 27
	TypeF64  TensorType = 28
	TypeBF16 TensorType = 30
)

// traits gives the block length in elements and the block size in bytes.
var traits = map[TensorType]struct {
	name  string
	block int64
	bytes int64
}{
	TypeF32:  {"F32", 1, 4},
	TypeF16:  {"F16", 1, 2},
	TypeQ4_0: {"Q4_0", 32, 18},
	TypeQ4_1: {"Q4_1", 32, 20},
	TypeQ5_0: {"Q5_0", 32, 22},
	TypeQ5_1: {"Q5_1", 32, 24},
	TypeQ8_0: {"Q8_0", 32, 34},
	TypeQ8_1: {"Q8_1", 32, 36},
	TypeQ2_K: {"Q2_K", 256, 84},
	TypeQ3_K: {"Q3_K", 256, 110},
	TypeQ4_K: {"Q4_K", 256, 144},
	TypeQ5_K: {"Q5_K", 256, 176},
	TypeQ6_K: {"Q6_K", 256, 210},
	TypeQ8_K: {"Q8_K", 256, 292},
	TypeI8:   {"I8", 1, 1},
	TypeI16:  {"I16", 1, 2},
	TypeI32:  {"I32", 1, 4},
	TypeI64:  {"I64", 1, 8},
	TypeF64:  {"F64", 1, 8},
	TypeBF16: {"BF16", 1, 2},
}

func (t TensorType) String() string {
	if tr, ok := traits[t]; ok {
		return tr.name
	}
	return fmt.Sprintf("type(%d)", uint32(t))
}

type TensorInfo struct {
	Name string
	// Dims are in ggml order, innermost first.
	Dims   []uint64
	Type   TensorType
	Offset uint64
}

func (ti TensorInfo) Numel() int64 {
	n := int64(1)
	for _, d := range ti.Dims {
		n *= int64(d)
	}
	return n
}

// Size is the stored size in bytes. ok is false for storage types this
// package has no block layout for.
func (ti TensorInfo) Size() (int64, bool) {
	tr, found := traits[ti.Type]
	if !found {
		return 0, false
	}
	return (ti.Numel() + tr.block - 1) / tr.block * tr.bytes, true
}

type File struct {
	Path       string
	Version    uint32
	KV         map[string]Value
	Tensors    []TensorInfo
	Alignment  uint64
	DataOffset uint64

	index map[string]int
}

// Open reads the header of the GGUF file at path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	gf, err := Parse(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	gf.Path = path
	return gf, nil
}

// Parse reads a GGUF header from r. size bounds length prefixes; zero
// disables the check.
func Parse(rd io.Reader, size int64) (*File, error) {
	r := newReader(rd, size)

	m, err := r.readN(4)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if string(m) != magic {
		return nil, fmt.Errorf("%w: invalid magic %q", ErrCorrupt, string(m))
	}
	version, err := r.readU32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if version < 2 || version > 3 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupported, version)
	}
	tensorCount, err := r.count("tensor")
	if err != nil {
		return nil, wrapCorrupt(err)
	}
	kvCount, err := r.count("metadata")
	if err != nil {
		return nil, wrapCorrupt(err)
	}

	gf := &File{
		Version:   version,
		KV:        make(map[string]Value, kvCount),
		Tensors:   make([]TensorInfo, 0, tensorCount),
		Alignment: 32,
		index:     make(map[string]int, tensorCount),
	}
	for i := range kvCount {
		key, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("read key %d: %w", i, wrapCorrupt(err))
		}
		vt, err := r.readU32()
		if err != nil {
			return nil, fmt.Errorf("read type of %s: %w", key, wrapCorrupt(err))
		}
		v, err := r.readValue(ValueType(vt))
		if err != nil {
			return nil, fmt.Errorf("read value of %s: %w", key, wrapCorrupt(err))
		}
		gf.KV[key] = Value{Type: ValueType(vt), Value: v}
	}

	for i := range tensorCount {
		name, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("read tensor name %d: %w", i, wrapCorrupt(err))
		}
		ndim, err := r.readU32()
		if err != nil {
			return nil, fmt.Errorf("read rank of %s: %w", name, wrapCorrupt(err))
		}
		if ndim > 8 {
			return nil, fmt.Errorf("%w: tensor %s has rank %d", ErrCorrupt, name, ndim)
		}
		ti := TensorInfo{Name: name, Dims: make([]uint64, ndim)}
		for d := range ndim {
			if ti.Dims[d], err = r.readU64(); err != nil {
				return nil, fmt.Errorf("read dims of %s: %w", name, wrapCorrupt(err))
			}
		}
		tt, err := r.readU32()
		if err != nil {
			return nil, fmt.Errorf("read type of %s: %w", name, wrapCorrupt(err))
		}
		ti.Type = TensorType(tt)
		if ti.Offset, err = r.readU64(); err != nil {
			return nil, fmt.Errorf("read offset of %s: %w", name, wrapCorrupt(err))
		}
		if _, dup := gf.index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate tensor %s", ErrCorrupt, name)
		}
		gf.index[name] = len(gf.Tensors)
		gf.Tensors = append(gf.Tensors, ti)
	}

	if a, ok := GetUint64(gf.KV, "general.alignment"); ok && a > 0 {
		gf.Alignment = a
	}
	gf.DataOffset = align(uint64(r.off), gf.Alignment)
	return gf, nil
}

func wrapCorrupt(err error) error {
	if errors.Is(err, ErrCorrupt) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrCorrupt, err)
}

func align(offset, alignment uint64) uint64 {
	if rem := offset % alignment; rem != 0 {
		return offset + alignment - rem
	}
	return offset
}

// Names returns the tensor names in sorted order.
func (f *File) Names() []string {
	return slices.Sorted(maps.Keys(f.index))
}

func (f *File) Tensor(name string) (TensorInfo, bool) {
	i, ok := f.index[name]
	if !ok {
		return TensorInfo{}, false
	}
	return f.Tensors[i], true
}

// CountParams sums the element counts of all tensors.
func (f *File) CountParams() int64 {
	var n int64
	for _, t := range f.Tensors {
		n += t.Numel()
	}
	return n
}

// Architecture returns general.architecture, or "" when absent.
func (f *File) Architecture() string {
	s, _ := GetString(f.KV, "general.architecture")
	return s
}

func GetString(kv map[string]Value, key string) (string, bool) {
	v, ok := kv[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value.(string)
	return s, ok
}

func GetUint64(kv map[string]Value, key string) (uint64, bool) {
	v, ok := kv[key]
	if !ok {
		return 0, false
	}
	switch t := v.Value.(type) {
	case uint8:
		return uint64(t), true
	case uint16:
		return uint64(t), true
	case uint32:
		return uint64(t), true
	case uint64:
		return t, true
	case int32:
		return uint64(t), t >= 0
	case int64:
		return uint64(t), t >= 0
	default:
		return 0, false
	}
}
