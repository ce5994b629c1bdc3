// Package mailbox adapts the host's callback-style mailbox API into
// context-aware calls. Nothing outside this package touches a raw callback.
package mailbox

import (
	"context"
	"fmt"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
)

type Status int

const (
	Succeeded Status = iota
	Failed
)

// AsyncResult is the value every raw host callback receives.
type AsyncResult[T any] struct {
	Status Status
	Value  T
	Error  *HostError
}

// HostError is the host's failure payload. It unwraps to ErrHostCall.
type HostError struct {
	Code    int
	Name    string
	Message string
}

func (e *HostError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("host error %d (%s): %s", e.Code, e.Name, e.Message)
	}
	return fmt.Sprintf("host error %d: %s", e.Code, e.Message)
}

func (e *HostError) Unwrap() error {
	return interrors.ErrHostCall
}

// Ok builds a successful result.
func Ok[T any](v T) AsyncResult[T] {
	return AsyncResult[T]{Status: Succeeded, Value: v}
}

// Fail builds a failed result.
func Fail[T any](code int, message string) AsyncResult[T] {
	return AsyncResult[T]{Status: Failed, Error: &HostError{Code: code, Message: message}}
}

// Await starts a callback-style host call and waits for its callback or ctx.
// Only the first callback invocation counts; a call that panics synchronously
// fails with ErrHostCall.
func Await[T any](ctx context.Context, call func(cb func(AsyncResult[T]))) (value T, err error) {
	done := make(chan AsyncResult[T], 1)
	cb := func(r AsyncResult[T]) {
		select {
		case done <- r:
		default:
		}
	}

	if err := invoke(call, cb); err != nil {
		return value, err
	}

	select {
	case <-ctx.Done():
		return value, ctx.Err()
	case r := <-done:
		if r.Status != Succeeded {
			if r.Error == nil {
				return value, interrors.ErrHostCall
			}
			return value, r.Error
		}
		return r.Value, nil
	}
}

func invoke[T any](call func(cb func(AsyncResult[T])), cb func(AsyncResult[T])) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", interrors.ErrHostCall, r)
		}
	}()
	call(cb)
	return nil
}
