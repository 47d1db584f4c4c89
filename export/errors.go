package export

import (
	"context"
	"errors"

	errorslib "github.com/goliatone/go-errors"
)

// ErrorKind defines export error kinds.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindTimeout       ErrorKind = "timeout"
	KindCanceled      ErrorKind = "canceled"
	KindInternal      ErrorKind = "internal"
	KindNotImpl       ErrorKind = "not_implemented"
	KindNetwork       ErrorKind = "network"
	KindStatus        ErrorKind = "status"
	KindDecode        ErrorKind = "decode"
	KindHeterogeneous ErrorKind = "heterogeneous"
	KindNoData        ErrorKind = "no_data"
)

// ErrNoData is returned when an export is requested without a record set.
var ErrNoData = NewError(KindNoData, "no data to export", nil)

// ExportError wraps errors with a kind.
type ExportError struct {
	Kind ErrorKind
	Msg  string
	Err  error
	// Status carries the upstream HTTP status for KindStatus errors.
	Status int
}

func (e *ExportError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Is matches export errors by kind so errors.Is(err, ErrNoData) holds for any no-data error.
func (e *ExportError) Is(target error) bool {
	t, ok := target.(*ExportError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == e.Msg
}

// NewError creates a new export error.
func NewError(kind ErrorKind, msg string, err error) *ExportError {
	return &ExportError{Kind: kind, Msg: msg, Err: err}
}

// NewStatusError creates a KindStatus error carrying the upstream status code.
func NewStatusError(status int, msg string) *ExportError {
	return &ExportError{Kind: KindStatus, Msg: msg, Status: status}
}

// IsUpstream reports whether the kind describes a failed fetch.
func (k ErrorKind) IsUpstream() bool {
	switch k {
	case KindNetwork, KindStatus, KindDecode, KindHeterogeneous:
		return true
	default:
		return false
	}
}

// AsGoError maps an error into a go-errors error.
func AsGoError(err error) *errorslib.Error {
	if err == nil {
		return nil
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		return ge
	}

	kind := KindInternal
	msg := err.Error()

	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		kind = exportErr.Kind
		if exportErr.Msg != "" {
			msg = exportErr.Msg
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		kind = KindCanceled
	}

	switch kind {
	case KindValidation:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("validation")
	case KindNotFound:
		return errorslib.New(msg, errorslib.CategoryNotFound).WithTextCode("not_found")
	case KindTimeout:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("timeout")
	case KindCanceled:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("canceled")
	case KindNotImpl:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("not_implemented")
	case KindNetwork:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("upstream_network")
	case KindStatus:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("upstream_status")
	case KindDecode:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("upstream_decode")
	case KindHeterogeneous:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("heterogeneous_record_set")
	case KindNoData:
		return errorslib.New(msg, errorslib.CategoryNotFound).WithTextCode("no_data")
	default:
		return errorslib.New(msg, errorslib.CategoryInternal).WithTextCode("internal")
	}
}

// KindFromError maps an error to its export error kind.
func KindFromError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		return exportErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	return KindInternal
}

// StatusFromError returns the upstream status carried by err, if any.
func StatusFromError(err error) int {
	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		return exportErr.Status
	}
	return 0
}
