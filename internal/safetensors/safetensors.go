// Package safetensors reads tensor checkpoints in the safetensors format:
// an 8-byte little-endian header length, a JSON header and a flat data
// region. Files are memory-mapped when possible.
package safetensors

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/goccy/go-json"
	"golang.org/x/sys/unix"
)

const maxHeaderSize = 100 << 20

var (
	ErrCorrupt          = errors.New("safetensors: corrupt file")
	ErrTensorNotFound   = errors.New("safetensors: tensor not found")
	ErrUnsupportedDType = errors.New("safetensors: unsupported dtype")
)

// TensorInfo locates one tensor inside the data region.
type TensorInfo struct {
	DType string  `json:"dtype"`
	Shape []int64 `json:"shape"`
	// Offsets relative to the start of the data region, End exclusive.
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Numel is the number of elements; a scalar (empty shape) has one.
func (ti TensorInfo) Numel() int64 {
	n := int64(1)
	for _, d := range ti.Shape {
		n *= d
	}
	return n
}

func (ti TensorInfo) Size() int64 { return ti.End - ti.Start }

type File struct {
	Path     string
	Tensors  map[string]TensorInfo
	Metadata map[string]string

	buf     []byte // whole file
	data    []byte // data region of buf
	mmapped bool
}

type tensorHeader struct {
	DType       string  `json:"dtype"`
	Shape       []int64 `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

// Open maps path read-only and parses its header. It falls back to reading
// the whole file when mmap is unavailable. Close releases the mapping.
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
	size := st.Size()
	if size < 8 || size > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("%w: %s has size %d", ErrCorrupt, path, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	mmapped := err == nil
	if !mmapped {
		if data, err = readAllAt(f, int(size)); err != nil {
			return nil, err
		}
	}
	sf, err := parse(path, data)
	if err != nil {
		if mmapped {
			_ = unix.Munmap(data)
		}
		return nil, err
	}
	sf.mmapped = mmapped
	return sf, nil
}

// OpenReaderAt parses a checkpoint from r without mapping it.
func OpenReaderAt(name string, r io.ReaderAt, size int64) (*File, error) {
	if size < 8 || size > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("%w: %s has size %d", ErrCorrupt, name, size)
	}
	data, err := readAllAt(r, int(size))
	if err != nil {
		return nil, err
	}
	return parse(name, data)
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	n, err := r.ReadAt(out, 0)
	if n == size && (err == nil || errors.Is(err, io.EOF)) {
		return out, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

func parse(path string, data []byte) (*File, error) {
	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > maxHeaderSize || 8+headerLen > uint64(len(data)) {
		return nil, fmt.Errorf("%w: %s: header length %d", ErrCorrupt, path, headerLen)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: header: %v", ErrCorrupt, path, err)
	}

	sf := &File{
		Path:    path,
		Tensors: make(map[string]TensorInfo, len(raw)),
		buf:     data,
		data:    data[8+headerLen:],
	}
	if meta, ok := raw["__metadata__"]; ok {
		if err := json.Unmarshal(meta, &sf.Metadata); err != nil {
			return nil, fmt.Errorf("%w: %s: metadata: %v", ErrCorrupt, path, err)
		}
		delete(raw, "__metadata__")
	}

	dataLen := int64(len(sf.data))
	for name, msg := range raw {
		var th tensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, fmt.Errorf("%w: tensor %q: %v", ErrCorrupt, name, err)
		}
		if len(th.DataOffsets) != 2 {
			return nil, fmt.Errorf("%w: tensor %q: data_offsets has %d entries", ErrCorrupt, name, len(th.DataOffsets))
		}
		ti := TensorInfo{DType: th.DType, Shape: th.Shape, Start: th.DataOffsets[0], End: th.DataOffsets[1]}
		if ti.Start < 0 || ti.End < ti.Start || ti.End > dataLen {
			return nil, fmt.Errorf("%w: tensor %q: range [%d, %d) outside %d data bytes", ErrCorrupt, name, ti.Start, ti.End, dataLen)
		}
		for _, d := range ti.Shape {
			if d < 0 {
				return nil, fmt.Errorf("%w: tensor %q: negative dim %d", ErrCorrupt, name, d)
			}
		}
		if es, err := DTypeSize(ti.DType); err == nil && ti.Numel()*int64(es) != ti.Size() {
			return nil, fmt.Errorf("%w: tensor %q: %d bytes for %d %s elements", ErrCorrupt, name, ti.Size(), ti.Numel(), ti.DType)
		}
		sf.Tensors[name] = ti
	}
	return sf, nil
}

// Close releases the file's mapping. Slices returned by Raw are invalid
// afterwards.
func (f *File) Close() error {
	if f == nil || f.buf == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unix.Munmap(f.buf)
	}
	f.buf = nil
	f.data = nil
	f.mmapped = false
	return err
}

func (f *File) Names() []string {
	return slices.Sorted(maps.Keys(f.Tensors))
}

func (f *File) Tensor(name string) (TensorInfo, bool) {
	ti, ok := f.Tensors[name]
	return ti, ok
}

// CountParams sums the element counts of every tensor in the file.
func (f *File) CountParams() int64 {
	var n int64
	for _, ti := range f.Tensors {
		n += ti.Numel()
	}
	return n
}

// Raw returns the tensor's bytes without copying.
func (f *File) Raw(name string) ([]byte, TensorInfo, error) {
	ti, ok := f.Tensors[name]
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	if f.data == nil {
		return nil, TensorInfo{}, fmt.Errorf("safetensors: %s is closed", f.Path)
	}
	return f.data[ti.Start:ti.End], ti, nil
}

// ReadF32 decodes a floating-point tensor into float32.
func (f *File) ReadF32(name string) ([]float32, TensorInfo, error) {
	raw, ti, err := f.Raw(name)
	if err != nil {
		return nil, TensorInfo{}, err
	}
	out := make([]float32, ti.Numel())
	if err := decodeF32(out, raw, ti.DType); err != nil {
		return nil, TensorInfo{}, fmt.Errorf("tensor %q: %w", name, err)
	}
	return out, ti, nil
}
