package protocol

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	UnrecognizedMessage ErrorKind = iota + 1
	MalformedMessage
)

var (
	ErrUnrecognized = errors.New("unrecognized message")
	ErrMalformed    = errors.New("malformed message")
	ErrMissingField = errors.New("missing required field")
	ErrUnknownKind  = errors.New("unknown request kind")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case UnrecognizedMessage:
		return ErrUnrecognized
	case MalformedMessage:
		return ErrMalformed
	}
	return nil
}

// ParseError is returned by Decode. errors.Is(err, ErrMalformed) and
// errors.Is(err, ErrUnrecognized) select on Kind.
type ParseError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "parse error"
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Is(target error) bool { return target == e.Kind.sentinel() }

func (e *ParseError) Unwrap() error { return e.Err }

func malformed(format string, args ...any) *ParseError {
	return &ParseError{Kind: MalformedMessage, Reason: fmt.Sprintf(format, args...)}
}

func unrecognized(format string, args ...any) *ParseError {
	return &ParseError{Kind: UnrecognizedMessage, Reason: fmt.Sprintf(format, args...)}
}
