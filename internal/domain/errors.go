package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure classes reported to peers.
type ErrorKind string

const (
	KindProtocol           ErrorKind = "ProtocolError"
	KindInvalidState       ErrorKind = "InvalidState"
	KindCapabilityMismatch ErrorKind = "CapabilityMismatch"
	KindResourceExhausted  ErrorKind = "ResourceExhausted"
	KindEngineFatal        ErrorKind = "EngineFatal"
	KindNotFound           ErrorKind = "NotFound"
	KindTimeout            ErrorKind = "Timeout"
	KindEngine             ErrorKind = "EngineError"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func WrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf classifies any error. Errors that carry no kind are engine failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindEngine
}

// MessageOf returns the peer-facing text for err.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "media engine call timed out"
	}
	return err.Error()
}
