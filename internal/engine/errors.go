package engine

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies engine failures so callers can react without string matching.
type Kind int

const (
	KindUnreachable Kind = iota + 1
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindInternalServerError
	KindUnknownStatus
	KindFileError
	KindInvalidArgs
	KindInvalidThreadCount
	KindMismatch
)

var kindNames = map[Kind]string{
	KindUnreachable:         "unreachable",
	KindBadRequest:          "bad request",
	KindUnauthorized:        "unauthorized",
	KindForbidden:           "forbidden",
	KindNotFound:            "not found",
	KindInternalServerError: "internal server error",
	KindUnknownStatus:       "unknown status",
	KindFileError:           "file error",
	KindInvalidArgs:         "invalid arguments",
	KindInvalidThreadCount:  "invalid thread count",
	KindMismatch:            "mismatch",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every engine operation that can fail.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

var (
	ErrUnreachable         = &Error{Kind: KindUnreachable}
	ErrBadRequest          = &Error{Kind: KindBadRequest}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrForbidden           = &Error{Kind: KindForbidden}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInternalServerError = &Error{Kind: KindInternalServerError}
	ErrUnknownStatus       = &Error{Kind: KindUnknownStatus}
	ErrFile                = &Error{Kind: KindFileError}
	ErrInvalidArgs         = &Error{Kind: KindInvalidArgs}
	ErrInvalidThreadCount  = &Error{Kind: KindInvalidThreadCount}
	ErrMismatch            = &Error{Kind: KindMismatch}

	ErrAlreadyDownloaded = errors.New("file already downloaded")
	ErrInvalidPartition  = errors.New("invalid partition")
)

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func fileError(op string, err error) *Error {
	return newError(KindFileError, op, err)
}

func mismatchf(op, format string, args ...any) *Error {
	return newError(KindMismatch, op, fmt.Errorf(format, args...))
}

// StatusError maps a non-success HTTP status code to its error kind.
func StatusError(op string, code int) *Error {
	kind := KindUnknownStatus
	switch code {
	case http.StatusBadRequest:
		kind = KindBadRequest
	case http.StatusUnauthorized:
		kind = KindUnauthorized
	case http.StatusForbidden:
		kind = KindForbidden
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusInternalServerError:
		kind = KindInternalServerError
	}
	return newError(kind, op, fmt.Errorf("status %d %s", code, http.StatusText(code)))
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
