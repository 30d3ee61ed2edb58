// Package errs implements the engine's closed error taxonomy: every error
// that crosses a package boundary in kvengine carries one of a fixed set of
// codes so callers can branch on failure class without parsing messages.
package errs

import "fmt"

// ErrorCode names one of the four error categories the engine can produce.
type ErrorCode string

const (
	// Io covers any filesystem failure: open, read, write, seek, flush,
	// directory enumeration, remove, create.
	Io ErrorCode = "IO"
	// Codec covers a record that could not be encoded or decoded,
	// including truncated trailing data in a log.
	Codec ErrorCode = "CODEC"
	// KeyNotFound is returned by Remove for a key absent from the index.
	KeyNotFound ErrorCode = "KEY_NOT_FOUND"
	// UnexpectedCommand signals that a locator resolved to a record whose
	// variant or key did not match what the index promised — index/log
	// divergence.
	UnexpectedCommand ErrorCode = "UNEXPECTED_COMMAND"
)

// Error is the concrete error type returned by every engine operation.
type Error struct {
	code    ErrorCode
	op      string
	key     string
	cause   error
	message string
}

func (e *Error) Error() string {
	msg := e.message
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	if e.op == "" {
		return msg
	}
	if e.key != "" {
		return fmt.Sprintf("%s: key %q: %s", e.op, e.key, msg)
	}
	return fmt.Sprintf("%s: %s", e.op, msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the error's taxonomy code, or "" if err is not one of ours.
func Code(err error) ErrorCode {
	var e *Error
	if as(err, &e) {
		return e.code
	}
	return ""
}

// as is a narrow errors.As shim kept local so this package has no import
// cycle risk with higher layers that also wrap with errors.As/Is.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// New builds a coded error with no wrapped cause.
func New(code ErrorCode, op, message string) *Error {
	return &Error{code: code, op: op, message: message}
}

// Wrap builds a coded error around an underlying cause.
func Wrap(code ErrorCode, op string, cause error) *Error {
	return &Error{code: code, op: op, cause: cause}
}

// WithKey attaches the key under operation to an error for richer messages.
func (e *Error) WithKey(key string) *Error {
	e.key = key
	return e
}

// IoErr wraps a filesystem error under the given operation name.
func IoErr(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return Wrap(Io, op, cause)
}

// CodecErr wraps a codec failure under the given operation name.
func CodecErr(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return Wrap(Codec, op, cause)
}

// KeyNotFoundErr builds the error Remove returns for an absent key.
func KeyNotFoundErr(key string) error {
	return New(KeyNotFound, "remove", "key not found").WithKey(key)
}

// UnexpectedCommandErr builds the error Get returns when a locator does not
// resolve to the Set record it was recorded against.
func UnexpectedCommandErr(key string, detail string) error {
	return New(UnexpectedCommand, "get", detail).WithKey(key)
}
