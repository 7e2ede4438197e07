package payments

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// MockInitiator accepts every push without calling the provider. Used when
// MPESA_ENVIRONMENT=mock; callbacks are then simulated with paytool.
type MockInitiator struct {
	Delay time.Duration
	seq   atomic.Int64
}

var _ Initiator = (*MockInitiator)(nil)

func (m *MockInitiator) Initiate(ctx context.Context, payer string, amountCents int64) (string, error) {
	if _, err := NormalizeMSISDN(payer); err != nil {
		return "", &InitiationError{Kind: KindRejected, Msg: "payer phone", Err: err}
	}
	if _, err := WholeUnits(amountCents); err != nil {
		return "", &InitiationError{Kind: KindRejected, Msg: "amount", Err: err}
	}

	if m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", transient("mock push", ctx.Err())
		case <-t.C:
		}
	}
	return fmt.Sprintf("ws_CO_%d%03d", time.Now().UnixNano(), m.seq.Add(1)%1000), nil
}
