package collection

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a CollectionError for the transport layer.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// Error codes surfaced to callers.
const (
	CodeInvalidRequest        = "InvalidRequest"
	CodeAllocationMismatch    = "AllocationMismatch"
	CodeOverAllocation        = "OverAllocation"
	CodeUnknownSchool         = "UnknownSchool"
	CodeUnknownStudent        = "UnknownStudent"
	CodeUnknownObligation     = "UnknownObligation"
	CodeUnknownPayment        = "UnknownPayment"
	CodeCollectorUnresolved   = "CollectorUnresolved"
	CodeBalanceConflict       = "BalanceConflict"
	CodeIdempotencyKeyReused  = "IdempotencyKeyReused"
	CodeCollectionInProgress  = "CollectionInProgress"
	CodeAllocationWriteFailed = "AllocationWriteFailed"
	CodeBalanceUpdateFailed   = "BalanceUpdateFailed"
	CodeInternal              = "InternalError"
)

type CollectionError struct {
	Kind    Kind
	Code    string
	Message string
	Details string
	Err     error
}

func (e *CollectionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind onto a response status.
func (e *CollectionError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, code, message, details string, cause error) *CollectionError {
	return &CollectionError{Kind: kind, Code: code, Message: message, Details: details, Err: cause}
}

func validationError(code, message, details string) error {
	return newError(KindValidation, code, message, details, nil)
}

func internalError(code, message string, cause error) error {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return newError(KindInternal, code, message, details, cause)
}

// AsCollectionError extracts a CollectionError from err, wrapping anything else as internal.
func AsCollectionError(err error) *CollectionError {
	var ce *CollectionError
	if errors.As(err, &ce) {
		return ce
	}
	return newError(KindInternal, CodeInternal, "internal error", err.Error(), err)
}

// IsCode reports whether err is a CollectionError with the given code.
func IsCode(err error, code string) bool {
	var ce *CollectionError
	return errors.As(err, &ce) && ce.Code == code
}
