// Package poller is the client side of payment confirmation: it polls the
// order status endpoint until the payment settles or its attempt budget runs
// out. Running out is a local verdict only; the server never learns about it
// and the order can still be paid later.
package poller

import (
	"context"
	"time"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/orders"
)

type Outcome string

const (
	OutcomePaid      Outcome = "paid"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeTimedOut  Outcome = "timed_out"
)

const (
	DefaultInterval    = 3 * time.Second
	DefaultMaxAttempts = 20
)

// Fetcher reads the current status of an order.
type Fetcher interface {
	FetchStatus(ctx context.Context, orderID string) (orders.StatusView, error)
}

type FetcherFunc func(ctx context.Context, orderID string) (orders.StatusView, error)

func (f FetcherFunc) FetchStatus(ctx context.Context, orderID string) (orders.StatusView, error) {
	return f(ctx, orderID)
}

type Poller struct {
	Fetcher     Fetcher
	Interval    time.Duration
	MaxAttempts int

	// After replaces time.After in tests.
	After func(time.Duration) <-chan time.Time
	// OnAttempt, if set, observes every poll.
	OnAttempt func(attempt int, st orders.StatusView, err error)
}

type Result struct {
	Outcome  Outcome
	Attempts int
	Last     orders.StatusView
	LastErr  error
}

// Wait polls orderID every Interval, up to MaxAttempts times. A failed poll
// counts as an attempt and does not stop the loop. The error is non-nil only
// when ctx ends first.
func (p Poller) Wait(ctx context.Context, orderID string) (Result, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	budget := p.MaxAttempts
	if budget <= 0 {
		budget = DefaultMaxAttempts
	}
	after := p.After
	if after == nil {
		after = time.After
	}

	var res Result
	for attempt := 1; attempt <= budget; attempt++ {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-after(interval):
		}

		st, err := p.Fetcher.FetchStatus(ctx, orderID)
		res.Attempts = attempt
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, st, err)
		}
		if err != nil {
			res.LastErr = err
			continue
		}
		res.Last, res.LastErr = st, nil

		if o, done := verdict(st); done {
			res.Outcome = o
			return res, nil
		}
	}

	res.Outcome = OutcomeTimedOut
	return res, nil
}

func verdict(st orders.StatusView) (Outcome, bool) {
	switch {
	case st.IsPaid:
		return OutcomePaid, true
	case st.OrderStatus == orders.StatusCancelled:
		return OutcomeCancelled, true
	case st.PaymentStatus == orders.PaymentFailed, st.PaymentStatus == orders.PaymentInitiationFailed:
		return OutcomeFailed, true
	}
	return "", false
}
