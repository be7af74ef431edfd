package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindIO        ErrorKind = "io"
	KindNetwork   ErrorKind = "network"
	KindProtocol  ErrorKind = "protocol"
	KindRemoteJob ErrorKind = "remote job"
	KindTimeout   ErrorKind = "timeout"
	KindCanceled  ErrorKind = "canceled"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrIO        = &Error{Kind: KindIO}
	ErrNetwork   = &Error{Kind: KindNetwork}
	ErrProtocol  = &Error{Kind: KindProtocol}
	ErrRemoteJob = &Error{Kind: KindRemoteJob}
	ErrTimeout   = &Error{Kind: KindTimeout}
	ErrCanceled  = &Error{Kind: KindCanceled}
)

// Error annotates a failure with the operation and its kind.
type Error struct {
	Op     string
	Kind   ErrorKind
	Job    JobHandle
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind) + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Job != "" {
		msg += fmt.Sprintf(" (job=%s)", e.Job)
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status=%d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return t.Op == "" && t.Job == "" && t.Status == 0 && t.Err == nil && t.Kind == e.Kind
}

func NewError(op string, kind ErrorKind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
