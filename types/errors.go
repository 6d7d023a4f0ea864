package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind tags the variant of an AppError
type ErrorKind int

const (
	KindApp ErrorKind = iota
	KindValidation
	KindChain
	KindTransaction
	KindAccountNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindChain:
		return "chain"
	case KindTransaction:
		return "transaction"
	case KindAccountNotFound:
		return "account_not_found"
	default:
		return "app"
	}
}

// ErrorDetail itemizes a single failure, usually one invalid field
type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// AppError is an error that knows how it should be rendered over HTTP.
// Message is already final: wrapped causes and signatures are concatenated into it.
type AppError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Details    []ErrorDetail

	// Signature and Payload are only set on transaction errors
	Signature string
	Payload   string

	cause error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// NewAppError builds an untagged application error with an explicit status
func NewAppError(message string, statusCode int, details ...ErrorDetail) *AppError {
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	return &AppError{
		Kind:       KindApp,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
	}
}

func NewValidationError(message string, details []ErrorDetail) *AppError {
	return &AppError{
		Kind:       KindValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// NewChainError wraps a failed chain interaction. The cause message is appended
// to message as "message: cause" and details of a wrapped AppError are kept.
func NewChainError(message string, cause error) *AppError {
	var details []ErrorDetail
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
		if inner, ok := AsAppError(cause); ok {
			details = inner.Details
		}
	}
	return &AppError{
		Kind:       KindChain,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Details:    details,
		cause:      cause,
	}
}

// NewTransactionError reports a submitted transaction that did not land cleanly.
// payload holds the serialized on-chain execution error, empty when confirmation itself failed.
func NewTransactionError(message, signature, payload string) *AppError {
	if signature != "" {
		message = fmt.Sprintf("%s. Transaction signature: %s", message, signature)
	}
	return &AppError{
		Kind:       KindTransaction,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Signature:  signature,
		Payload:    payload,
	}
}

func NewAccountNotFoundError(address string) *AppError {
	return &AppError{
		Kind:       KindAccountNotFound,
		Message:    "Account not found: " + address,
		StatusCode: http.StatusNotFound,
	}
}

// AsAppError finds the first AppError in err's chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsKind(err error, kind ErrorKind) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == kind
}

func IsAccountNotFound(err error) bool {
	return IsKind(err, KindAccountNotFound)
}
