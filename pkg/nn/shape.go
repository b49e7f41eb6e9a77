package nn

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Shape is a tensor shape. Every dimension must be positive.
type Shape []int

// ParseShape parses "1,3,224,224" or "1x3x224x224" (spaces allowed).
func ParseShape(s string) (Shape, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, fmt.Errorf("%w: empty shape", ErrInvalidShape)
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == 'x' || r == 'X' || r == ' '
	})
	out := make(Shape, 0, len(fields))
	for _, f := range fields {
		d, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: dimension %q", ErrInvalidShape, f)
		}
		out = append(out, d)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate reports whether s is non-empty with positive dimensions whose
// product fits in an int64.
func (s Shape) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: rank 0", ErrInvalidShape)
	}
	n := int64(1)
	for i, d := range s {
		if d <= 0 {
			return fmt.Errorf("%w: dim %d is %d", ErrInvalidShape, i, d)
		}
		if n > math.MaxInt64/int64(d) {
			return fmt.Errorf("%w: %s has more than %d elements", ErrInvalidShape, s, int64(math.MaxInt64))
		}
		n *= int64(d)
	}
	return nil
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int { return len(s) }

// Numel returns the number of elements described by s.
func (s Shape) Numel() int64 {
	if len(s) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range s {
		n *= int64(d)
	}
	return n
}

// Clone returns a copy that does not alias s.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// Equal reports whether both shapes have the same dimensions.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Dim returns dimension i; negative i counts from the end.
func (s Shape) Dim(i int) int {
	if i < 0 {
		i += len(s)
	}
	return s[i]
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
