// Package notify raises operational alerts for payment conditions that need a
// human: unknown callbacks, amount mismatches, failed or lost initiations.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type Kind string

const (
	KindUnknownCorrelation Kind = "unknown_correlation"
	KindAmountMismatch     Kind = "amount_mismatch"
	KindInitiationFailed   Kind = "initiation_failed"
	KindHandoffLost        Kind = "handoff_lost"
	KindMalformedCallback  Kind = "malformed_callback"
)

type Alert struct {
	Kind          Kind           `json:"kind"`
	OrderID       string         `json:"orderId,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`
	Message       string         `json:"message"`
	Fields        map[string]any `json:"fields,omitempty"`
	At            time.Time      `json:"at"`
}

type Sink interface {
	Notify(ctx context.Context, a Alert) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, a Alert) error

func (f SinkFunc) Notify(ctx context.Context, a Alert) error { return f(ctx, a) }

// Nop drops alerts.
type Nop struct{}

func (Nop) Notify(context.Context, Alert) error { return nil }

// LogSink writes alerts to the structured log at warn level.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Notify(ctx context.Context, a Alert) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	attrs := []any{"kind", a.Kind, "order_id", a.OrderID, "correlation_id", a.CorrelationID}
	for k, v := range a.Fields {
		attrs = append(attrs, k, v)
	}
	l.WarnContext(ctx, "payment alert: "+a.Message, attrs...)
	return nil
}

// Multi fans an alert out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Async delivers alerts in the background under their own timeout, so a slow
// broker never delays a checkout or callback response.
type Async struct {
	Sink    Sink
	Timeout time.Duration
	Logger  *slog.Logger
}

func (a Async) Notify(ctx context.Context, al Alert) error {
	if al.At.IsZero() {
		al.At = time.Now()
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	go func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := a.Sink.Notify(cctx, al); err != nil {
			l := a.Logger
			if l == nil {
				l = slog.Default()
			}
			l.ErrorContext(cctx, "alert delivery failed", "kind", al.Kind, "order_id", al.OrderID, "err", err)
		}
	}()
	return nil
}
