package api

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest matches every error caused by the request itself.
var ErrInvalidRequest = errors.New("invalid request")

// requestError blames one request field, reported as "param" in the error
// body. param is empty when the body as a whole is at fault.
type requestError struct {
	param string
	msg   string
}

func (e *requestError) Error() string { return e.msg }

func (e *requestError) Unwrap() error { return ErrInvalidRequest }

func invalidParam(param, format string, args ...any) error {
	return &requestError{param: param, msg: fmt.Sprintf(format, args...)}
}

// errorParam returns the request field blamed by err, or "".
func errorParam(err error) string {
	var re *requestError
	if errors.As(err, &re) {
		return re.param
	}
	return ""
}
