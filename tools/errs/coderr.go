package errs

import (
	"errors"
	"strconv"
	"strings"
)

// CodeError is the client-facing error shape used by the gateway.
// The real-time core itself never surfaces errors to clients; these
// codes cover the transport boundary (bad frames, failed auth).
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// WithDetail returns a copy carrying extra detail; the original is shared
// package state and must stay immutable.
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

func (e *CodeError) Is(err error) bool {
	var ce *CodeError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == e.Code
}

var (
	ErrArgs         = NewCodeError(1001, "invalid argument")
	ErrTokenExpired = NewCodeError(1501, "token expired")
	ErrTokenInvalid = NewCodeError(1502, "token invalid")
	ErrNotAuthed    = NewCodeError(1503, "connection not authenticated")
)
