package errors

import (
	"errors"
	"net/http"
)

// Domain errors. The first block is the transaction-pipeline taxonomy:
// transient errors are retried within a bounded attempt count, terminal
// errors fail the owning queue item without aborting its batch.
var (
	ErrTransientRPC         = errors.New("transient rpc error")
	ErrInvalidAuthorization = errors.New("invalid transfer authorization")
	ErrOnChainRevert        = errors.New("transaction reverted on-chain")
	ErrNonceConflict        = errors.New("nonce conflict")
	ErrTxTimeout            = errors.New("transaction confirmation timed out")
	ErrLockBusy             = errors.New("operation already in progress, try again shortly")

	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
)

// IsTerminal reports whether err permanently fails a queue item. Transient
// RPC errors and nonce conflicts are resolved by the processor itself.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrInvalidAuthorization) ||
		errors.Is(err, ErrOnChainRevert) ||
		errors.Is(err, ErrTxTimeout)
}

// AppError represents application error with HTTP status
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, message, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, message, ErrUnauthorized)
}

func Conflict(message string) *AppError {
	return NewAppError(http.StatusConflict, message, ErrLockBusy)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, "internal server error", err)
}
