package tensor

import (
	"math/rand"
)

// Mat represents a dense row‑major matrix of float32 values.
//
// R and C represent the number of rows and columns respectively.  Stride is the
// number of elements between the starts of two consecutive rows (for row‑major
// matrices this is equal to C).  Data holds the flattened matrix values.
//
// Mat does not perform any memory safety beyond the checks performed by Go's
// slice types; out‑of‑range indices will panic.
type Mat struct {
	R, C   int
	Stride int
	Data   []float32
}

// NewMatFromData wraps existing data as an r x c matrix without copying.
func NewMatFromData(r, c int, data []float32) (Mat, error) {
	if r < 0 || c < 0 {
		return Mat{}, errNegativeDim
	}
	if r != 0 && (r*c)/r != c {
		return Mat{}, errMatTooLarge
	}
	if r*c != len(data) {
		return Mat{}, errDataSizeMismatch
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		Data:   data,
	}, nil
}

// Row returns a view of the i‑th row. Modifications to the returned slice
// update the matrix.
func (m *Mat) Row(i int) []float32 {
	if i < 0 || i >= m.R {
		panic("row index out of range")
	}
	start := i * m.Stride
	return m.Data[start : start+m.C]
}

// FillRand fills data with reproducible pseudo‑random values in a small range
// around zero. The same seed always produces the same values.
func FillRand(data []float32, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := range data {
		data[i] = (rng.Float32() - 0.5) * 0.02
	}
}

var (
	errNegativeDim      = fmtError("negative dimension for matrix")
	errMatTooLarge      = fmtError("matrix too large")
	errDataSizeMismatch = fmtError("data length mismatch")
)

type fmtError string

func (e fmtError) Error() string { return string(e) }
