package payments

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies an initiation failure for logging and operator alerts.
// None of the kinds is retried by the client.
type ErrorKind string

const (
	KindTransient ErrorKind = "transient" // timeout, connection refused, 5xx without a body
	KindRejected  ErrorKind = "rejected"  // provider answered with an error code
	KindMalformed ErrorKind = "malformed" // response could not be understood
)

type InitiationError struct {
	Kind ErrorKind
	Code string // provider error / response code, if any
	Msg  string
	Err  error
}

func (e *InitiationError) Error() string {
	s := string(e.Kind) + ": " + e.Msg
	if e.Code != "" {
		s += " (code " + e.Code + ")"
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *InitiationError) Unwrap() error { return e.Err }

// KindOf reports the kind of an initiation error. Context and network errors
// that were not classified by the client count as transient.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ie *InitiationError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	if isTransport(err) {
		return KindTransient
	}
	return KindMalformed
}

func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func transient(msg string, err error) error {
	return &InitiationError{Kind: KindTransient, Msg: msg, Err: err}
}

func rejected(code, msg string) error {
	return &InitiationError{Kind: KindRejected, Code: code, Msg: msg}
}

func malformed(msg string, err error) error {
	return &InitiationError{Kind: KindMalformed, Msg: msg, Err: err}
}

var (
	ErrInvalidPhone   = errors.New("invalid phone number")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrBadSignature   = errors.New("invalid callback signature")
	ErrMalformedEvent = errors.New("malformed callback payload")
)

func errInvalidAmount(cents int64) error {
	return fmt.Errorf("%w: %d cents", ErrInvalidAmount, cents)
}
