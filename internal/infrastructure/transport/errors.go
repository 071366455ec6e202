package transport

import (
	"context"
	"errors"
	"fmt"

	"TasteClient/internal/domain"
)

// Error is the failure type of every call made through Client.
type Error struct {
	Kind    domain.ErrorKind
	Op      string
	Status  int
	Body    []byte
	Message string
	Err     error
}

// Sentinels for errors.Is checks against a kind.
var (
	ErrUnauthorized = &Error{Kind: domain.KindUnauthorized}
	ErrTimeout      = &Error{Kind: domain.KindTimeout}
	ErrHTTP         = &Error{Kind: domain.KindHTTP}
	ErrNetwork      = &Error{Kind: domain.KindNetwork}
)

func (e *Error) Error() string {
	op := e.Op
	if op == "" {
		op = "request"
	}

	switch e.Kind {
	case domain.KindUnauthorized:
		return fmt.Sprintf("%s: unauthorized", op)
	case domain.KindTimeout:
		return fmt.Sprintf("%s: timed out", op)
	case domain.KindHTTP:
		if e.Message != "" {
			return fmt.Sprintf("%s: status %d: %s", op, e.Status, e.Message)
		}
		return fmt.Sprintf("%s: status %d", op, e.Status)
	default:
		if errors.Is(e.Err, context.Canceled) {
			return fmt.Sprintf("%s: canceled", op)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", op, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %s", op, e.Kind)
	}
}

// Unwrap exposes the underlying net/http or context error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels above.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Status != 0 {
		return false
	}
	return t.Kind == e.Kind
}

// ErrorKind implements the domain kind contract.
func (e *Error) ErrorKind() domain.ErrorKind {
	return e.Kind
}

// StatusCode is the HTTP status of the answer, 0 when none arrived.
func (e *Error) StatusCode() int {
	return e.Status
}

// DisplayMessage is the user-facing text extracted from the response body.
func (e *Error) DisplayMessage() string {
	return e.Message
}
