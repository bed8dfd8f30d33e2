package tools

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/scriptoria/deepresearch/internal/fetch"
)

type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindValidation    Kind = "validation"
	KindTransient     Kind = "transient"
	KindContent       Kind = "content"
	KindUnexpected    Kind = "unexpected"
)

// Error classifies a failure inside a tool. Status is the upstream HTTP
// status when there was one.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindUnexpected.
func KindOf(err error) Kind {
	var toolErr *Error
	if errors.As(err, &toolErr) {
		return toolErr.Kind
	}
	return KindUnexpected
}

// cause strips the *Error wrapper so messages show the upstream text.
func cause(err error) error {
	var toolErr *Error
	if errors.As(err, &toolErr) && toolErr.Err != nil {
		return toolErr.Err
	}
	return err
}

func isTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// networkKind tells timeouts and refused or broken connections apart from
// everything else.
func networkKind(err error) (kind Kind, timeout bool, ok bool) {
	if errors.Is(err, context.Canceled) {
		return "", false, false
	}
	if fetch.IsTimeout(err) {
		return KindTransient, true, true
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return KindTransient, false, true
	}
	return "", false, false
}
