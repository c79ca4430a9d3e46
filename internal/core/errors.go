package core

import "errors"

var (
	// ErrValidation signals malformed input; it is always returned before a transaction opens.
	ErrValidation = errors.New("validation error")
	// ErrInvalidQuantity signals a delivery delta larger than the undelivered quantity.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrInvalidStateTransition signals an operation the order's status does not permit.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrNotFound signals an unknown order, article or client reference.
	ErrNotFound = errors.New("not found")
	// ErrDocumentNotAllowed signals a document kind not permitted for the current status.
	ErrDocumentNotAllowed = errors.New("document not allowed")
	// ErrConcurrencyConflict signals that the order status changed during a fulfillment transaction.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// ErrorKind is the closed classification of errors surfaced by the core.
type ErrorKind string

const (
	KindValidation         ErrorKind = "VALIDATION_ERROR"
	KindInvalidQuantity    ErrorKind = "INVALID_QUANTITY"
	KindInvalidTransition  ErrorKind = "INVALID_STATE_TRANSITION"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindDocumentNotAllowed ErrorKind = "DOCUMENT_NOT_ALLOWED"
	KindConcurrency        ErrorKind = "CONCURRENCY_CONFLICT"
	KindInternal           ErrorKind = "INTERNAL_ERROR"
)

// KindOf classifies err. Infrastructure failures (driver, network) map to KindInternal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrInvalidQuantity):
		return KindInvalidQuantity
	case errors.Is(err, ErrInvalidStateTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDocumentNotAllowed):
		return KindDocumentNotAllowed
	case errors.Is(err, ErrConcurrencyConflict):
		return KindConcurrency
	}
	return KindInternal
}
