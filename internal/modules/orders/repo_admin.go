package orders

import (
	"context"
	"time"
)

type PendingListParams struct {
	OlderThan time.Duration
	Limit     int
}

// ListAwaitingConfirmation returns provider-push orders still waiting for a
// callback after OlderThan, oldest first, for operator follow-up.
func (r *Repo) ListAwaitingConfirmation(ctx context.Context, in PendingListParams) ([]Order, error) {
	return r.listStuck(ctx, PaymentAwaitingConfirmation, in)
}

// ListAwaitingInitiation returns provider-push orders that never got their
// correlation id stored. Past a few seconds these are lost handoffs: the
// payer may have been prompted, so an operator must attach the id.
func (r *Repo) ListAwaitingInitiation(ctx context.Context, in PendingListParams) ([]Order, error) {
	return r.listStuck(ctx, PaymentAwaitingInitiation, in)
}

func (r *Repo) listStuck(ctx context.Context, status PaymentStatus, in PendingListParams) ([]Order, error) {
	limit := in.Limit
	if limit < 1 || limit > 500 {
		limit = 100
	}
	cutoff := time.Now().Add(-in.OlderThan)

	var out []Order
	err := r.db.WithContext(ctx).
		Where("payment_method = ? AND payment_status = ? AND created_at < ?", MethodProviderPush, status, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Events returns the audit trail of an order, oldest first.
func (r *Repo) Events(ctx context.Context, orderID string) ([]OrderEvent, error) {
	var out []OrderEvent
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&out, "order_id = ?", orderID).Error
	return out, err
}
