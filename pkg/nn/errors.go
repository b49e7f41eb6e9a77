package nn

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidShape    = errors.New("invalid shape")
	ErrInvalidConfig   = errors.New("invalid module config")
	ErrShapeMismatch   = errors.New("input shape mismatch")
	ErrNotMaterialized = errors.New("parameter not materialized")
)

// ForwardError records which module in a tree failed during a forward pass.
// Path is the dotted path from the outermost Call that saw the error.
type ForwardError struct {
	Path string
	Kind Kind
	Err  error
}

func (e *ForwardError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("forward %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("forward %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *ForwardError) Unwrap() error { return e.Err }

func shapeErr(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrShapeMismatch}, args...)...)
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}
