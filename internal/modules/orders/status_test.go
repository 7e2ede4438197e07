package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	all := []PaymentStatus{
		PaymentNotRequired, PaymentAwaitingInitiation, PaymentAwaitingConfirmation,
		PaymentInitiationFailed, PaymentPaid, PaymentFailed,
	}
	allowed := map[[2]PaymentStatus]bool{
		{PaymentAwaitingInitiation, PaymentAwaitingConfirmation}: true,
		{PaymentAwaitingInitiation, PaymentInitiationFailed}:     true,
		{PaymentAwaitingConfirmation, PaymentPaid}:               true,
		{PaymentAwaitingConfirmation, PaymentFailed}:             true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]PaymentStatus{from, to}]
			assert.Equalf(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range []PaymentStatus{PaymentNotRequired, PaymentInitiationFailed, PaymentPaid, PaymentFailed} {
		assert.Truef(t, s.IsTerminal(), "%s should be terminal", s)
		assert.Emptyf(t, paymentTransitions[s], "%s must not have outgoing edges", s)
	}
	assert.False(t, PaymentAwaitingInitiation.IsTerminal())
	assert.False(t, PaymentAwaitingConfirmation.IsTerminal())
}

func TestServerHasNoTimedOutState(t *testing.T) {
	assert.False(t, PaymentStatus("timed_out").Valid())
}

func TestInitialPaymentStatus(t *testing.T) {
	assert.Equal(t, PaymentAwaitingInitiation, InitialPaymentStatus(MethodProviderPush))
	assert.Equal(t, PaymentNotRequired, InitialPaymentStatus(MethodPayOnFulfillment))
	assert.Equal(t, PaymentPaid, InitialPaymentStatus(MethodPreAuthorized))
}

func TestCanTransitionOrder(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusProcessing, StatusFulfilled, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusPending, StatusFulfilled, false},
		{StatusFulfilled, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusProcessing, StatusPending, false},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, CanTransitionOrder(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}
