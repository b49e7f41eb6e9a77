package safetensors

import (
	"encoding/binary"
	"fmt"
	"math"
)

var dtypeSizes = map[string]int{
	"BOOL": 1, "U8": 1, "I8": 1, "F8_E4M3": 1, "F8_E5M2": 1,
	"U16": 2, "I16": 2, "F16": 2, "BF16": 2,
	"U32": 4, "I32": 4, "F32": 4,
	"U64": 8, "I64": 8, "F64": 8,
}

// DTypeSize returns the byte width of one element of dtype.
func DTypeSize(dtype string) (int, error) {
	if n, ok := dtypeSizes[dtype]; ok {
		return n, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedDType, dtype)
}

// decodeF32 converts little-endian F32, F64, F16 or BF16 data into dst.
func decodeF32(dst []float32, raw []byte, dtype string) error {
	size, err := DTypeSize(dtype)
	if err != nil {
		return err
	}
	if len(raw) != len(dst)*size {
		return fmt.Errorf("%w: %d bytes for %d %s elements", ErrCorrupt, len(raw), len(dst), dtype)
	}
	switch dtype {
	case "F32":
		for i := range dst {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case "F64":
		for i := range dst {
			dst[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:])))
		}
	case "F16":
		for i := range dst {
			dst[i] = fp16ToF32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case "BF16":
		for i := range dst {
			dst[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(raw[i*2:])) << 16)
		}
	default:
		return fmt.Errorf("%w: %s is not a float type", ErrUnsupportedDType, dtype)
	}
	return nil
}

func fp16ToF32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h & 0x3ff)
	switch exp {
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// subnormal: renormalise
		e := uint32(127 - 15 + 1)
		for frac&0x400 == 0 {
			frac <<= 1
			e--
		}
		return math.Float32frombits(sign | e<<23 | (frac&0x3ff)<<13)
	case 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | frac<<13)
	default:
		return math.Float32frombits(sign | (exp+127-15)<<23 | frac<<13)
	}
}
