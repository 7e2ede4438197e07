package payments

import "context"

// Initiator asks the provider to push a payment prompt to the payer's phone.
// It returns the provider correlation id that the asynchronous callback will
// carry. Implementations never retry; a retry could charge the payer twice.
type Initiator interface {
	Initiate(ctx context.Context, payer string, amountCents int64) (string, error)
}

// InitiatorFunc adapts a plain function to Initiator.
type InitiatorFunc func(ctx context.Context, payer string, amountCents int64) (string, error)

func (f InitiatorFunc) Initiate(ctx context.Context, payer string, amountCents int64) (string, error) {
	return f(ctx, payer, amountCents)
}

// WholeUnits converts minor units to the whole-shilling amount the provider
// accepts. Fractions round up so the payer is never undercharged.
func WholeUnits(cents int64) (int64, error) {
	if cents <= 0 {
		return 0, errInvalidAmount(cents)
	}
	return (cents + 99) / 100, nil
}
