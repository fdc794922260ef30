package ledger

import "fmt"

// ErrorKind is a well known kind of a banking domain error
type ErrorKind string

// Domain error kinds. Every ledger operation either succeeds or fails
// with exactly one of these.
const (
	KindInvalidCredentials  ErrorKind = "InvalidCredentials"
	KindInvalidAmount       ErrorKind = "InvalidAmount"
	KindInvalidPinFormat    ErrorKind = "InvalidPinFormat"
	KindPinUnchanged        ErrorKind = "PinUnchanged"
	KindInsufficientBalance ErrorKind = "InsufficientBalance"
	KindLimitExceeded       ErrorKind = "LimitExceeded"
	KindSelfTransfer        ErrorKind = "SelfTransfer"
	KindRecipientNotFound   ErrorKind = "RecipientNotFound"
	KindNotAuthenticated    ErrorKind = "NotAuthenticated"
	KindStorage             ErrorKind = "StorageError"
)

// Error represents a banking domain error structure
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%v]: %v", e.Kind, e.Message)
}

// Cause returns an underlying error if any
func (e *Error) Cause() error {
	return e.cause
}

// NewError creates a domain error of a given kind
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewStorageError creates a StorageError kind error wrapping the storage failure cause
func NewStorageError(cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindStorage,
		Message: fmt.Sprintf(format, args...) + ": " + cause.Error(),
		cause:   cause,
	}
}

type causer interface {
	Cause() error
}

// IsKind tells if a given error is a domain error of a given kind.
// Walks the cause chain so wrapped domain errors are recognized as well.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		if domainErr, ok := err.(*Error); ok {
			return domainErr.Kind == kind
		}
		cause, ok := err.(causer)
		if !ok {
			break
		}
		err = cause.Cause()
	}
	return false
}
