package domain

import "errors"

var (
	ErrNotAuthorized         = errors.New("not authorized")
	ErrInvalidState          = errors.New("invalid state")
	ErrInvalidMilestone      = errors.New("invalid milestone")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrNothingOwed           = errors.New("nothing owed")
	ErrReentrancy            = errors.New("reentrant call during transfer")
	ErrTransferFailed        = errors.New("transfer failed")
	ErrNotFound              = errors.New("not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrConflict              = errors.New("conflict")
	ErrIdempotencyConflict   = errors.New("idempotency conflict")
	ErrUnsupportedEventType  = errors.New("unsupported event type")
	ErrUnsupportedEventClass = errors.New("unsupported event class")
)
