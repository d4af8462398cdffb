package scalecache

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/scalecache/raster"
)

// ErrorKind classifies failures surfaced by a Cache.
type ErrorKind uint8

const (
	// ErrorKindUsage: the cache was used out of order or with an invalid key.
	ErrorKindUsage ErrorKind = iota + 1
	// ErrorKindUnsupportedFormat: no operator handles the pixel format.
	ErrorKindUnsupportedFormat
	// ErrorKindNumericFailure: an operator rejected its input.
	ErrorKindNumericFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindUsage:
		return "usage"
	case ErrorKindUnsupportedFormat:
		return "unsupported_format"
	case ErrorKindNumericFailure:
		return "numeric_failure"
	}
	return fmt.Sprintf("error_kind(%d)", uint8(k))
}

// ErrNoOriginal is wrapped by usage errors raised before SetOriginal.
var ErrNoOriginal = errors.New("no original entry set")

// Error is a cache-level failure. Errors from Ops are returned unchanged
// and classified by KindOf instead.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("scalecache: %s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("scalecache: %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("scalecache: %s: %s", e.Op, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func usageError(op, msg string, err error) error {
	return &Error{Kind: ErrorKindUsage, Op: op, Msg: msg, Err: err}
}

// KindOf classifies err. ok is false for errors outside the taxonomy,
// such as context cancellation.
func KindOf(err error) (kind ErrorKind, ok bool) {
	var ce *Error
	switch {
	case err == nil:
		return 0, false
	case errors.As(err, &ce):
		return ce.Kind, true
	case errors.Is(err, raster.ErrUnsupportedFormat):
		return ErrorKindUnsupportedFormat, true
	case errors.Is(err, raster.ErrDegenerate):
		return ErrorKindNumericFailure, true
	}
	return 0, false
}
