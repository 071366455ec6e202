package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the request core.
type ErrorKind string

const (
	KindUnknown      ErrorKind = "unknown"
	KindUnauthorized ErrorKind = "unauthorized"
	KindTimeout      ErrorKind = "timeout"
	KindHTTP         ErrorKind = "http"
	KindNetwork      ErrorKind = "network"
	KindValidation   ErrorKind = "validation"
)

type kinded interface {
	ErrorKind() ErrorKind
}

// KindOf returns the kind carried by err or any error it wraps.
// A nil error has no kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var k kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return KindUnknown
}

// ValidationError rejects input before anything is sent over the wire.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// ErrorKind implements the kinded contract.
func (e *ValidationError) ErrorKind() ErrorKind {
	return KindValidation
}
