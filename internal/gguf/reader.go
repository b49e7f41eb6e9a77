package gguf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// reader decodes little-endian GGUF primitives and tracks the offset so the
// start of the data section can be derived once the header is consumed.
type reader struct {
	r    *bufio.Reader
	off  int64
	size int64
}

func newReader(rd io.Reader, size int64) *reader {
	return &reader{r: bufio.NewReader(rd), size: size}
}

func (r *reader) readN(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: read length %d", ErrCorrupt, n)
	}
	if r.size > 0 && r.off+int64(n) > r.size {
		return nil, io.ErrUnexpectedEOF
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, err
	}
	r.off += int64(n)
	return buf, nil
}

func (r *reader) readU8() (uint8, error) {
	b, err := r.readN(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) readU16() (uint16, error) {
	b, err := r.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) readU32() (uint32, error) {
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) readU64() (uint64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// count reads a u64 length prefix and rejects values that could not fit in
// the rest of the file.
func (r *reader) count(what string) (uint64, error) {
	n, err := r.readU64()
	if err != nil {
		return 0, err
	}
	if r.size > 0 && n > uint64(r.size-r.off) {
		return 0, fmt.Errorf("%w: %s count %d exceeds file size", ErrCorrupt, what, n)
	}
	return n, nil
}

func (r *reader) readString() (string, error) {
	n, err := r.count("string")
	if err != nil {
		return "", err
	}
	b, err := r.readN(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) readValue(vtype ValueType) (any, error) {
	switch vtype {
	case TypeUint8:
		return r.readU8()
	case TypeInt8:
		v, err := r.readU8()
		return int8(v), err
	case TypeUint16:
		return r.readU16()
	case TypeInt16:
		v, err := r.readU16()
		return int16(v), err
	case TypeUint32:
		return r.readU32()
	case TypeInt32:
		v, err := r.readU32()
		return int32(v), err
	case TypeUint64:
		return r.readU64()
	case TypeInt64:
		v, err := r.readU64()
		return int64(v), err
	case TypeFloat32:
		v, err := r.readU32()
		return math.Float32frombits(v), err
	case TypeFloat64:
		v, err := r.readU64()
		return math.Float64frombits(v), err
	case TypeBool:
		v, err := r.readU8()
		return v != 0, err
	case TypeString:
		return r.readString()
	case TypeArray:
		et, err := r.readU32()
		if err != nil {
			return nil, err
		}
		n, err := r.count("array")
		if err != nil {
			return nil, err
		}
		arr := ArrayValue{ElemType: ValueType(et), Values: make([]any, 0, n)}
		for range n {
			v, err := r.readValue(arr.ElemType)
			if err != nil {
				return nil, err
			}
			arr.Values = append(arr.Values, v)
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("%w: value type %d", ErrCorrupt, uint32(vtype))
	}
}
