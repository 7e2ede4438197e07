package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/shared/text"
)

// Store is the order record store used by checkout, callbacks and status reads.
// Every payment write is conditional on the current payment status, which is
// the only concurrency primitive the payment flow relies on.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (Order, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (Order, error)
	GetStatus(ctx context.Context, id string) (StatusView, error)

	AttachCorrelation(ctx context.Context, id, correlationID string) (bool, error)
	MarkInitiationFailed(ctx context.Context, id, reason string) (bool, error)
	SettlePayment(ctx context.Context, id, correlationID string, s Settlement) (bool, error)
}

// Settlement is the terminal payment result reported by the provider.
type Settlement struct {
	Status             PaymentStatus // paid|failed
	Metadata           datatypes.JSON
	ReconciliationFlag *string
	At                 time.Time
}

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

var _ Store = (*Repo)(nil)

func (r *Repo) Create(ctx context.Context, o *Order) error {
	now := time.Now()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt, o.UpdatedAt = now, now
	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.OrderID = o.ID
		it.Position = i
		it.CreatedAt = now
	}

	return withTxRetry(ctx, r.db, 3, func(tx *gorm.DB) error {
		if err := tx.Create(o).Error; err != nil {
			return err
		}
		return tx.Create(&OrderEvent{
			ID:         uuid.NewString(),
			OrderID:    o.ID,
			Actor:      "checkout",
			Action:     "created",
			FromStatus: "",
			ToStatus:   string(o.PaymentStatus),
			CreatedAt:  now,
		}).Error
	})
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	var o Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&o, "id = ?", id).Error
	return o, notFound(err)
}

func (r *Repo) GetByCorrelationID(ctx context.Context, correlationID string) (Order, error) {
	if correlationID == "" {
		return Order{}, ErrNotFound
	}
	var o Order
	err := r.db.WithContext(ctx).First(&o, "payment_correlation_id = ?", correlationID).Error
	return o, notFound(err)
}

func (r *Repo) GetStatus(ctx context.Context, id string) (StatusView, error) {
	var o Order
	err := r.db.WithContext(ctx).
		Select("id", "order_status", "payment_status").
		First(&o, "id = ?", id).Error
	if err != nil {
		return StatusView{}, notFound(err)
	}
	return StatusView{
		OrderID:       o.ID,
		OrderStatus:   o.OrderStatus,
		PaymentStatus: o.PaymentStatus,
		IsPaid:        o.IsPaid(),
	}, nil
}

// AttachCorrelation records the provider correlation id and hands the order
// over to the callback. The id is written at most once.
func (r *Repo) AttachCorrelation(ctx context.Context, id, correlationID string) (bool, error) {
	if correlationID == "" {
		return false, errors.New("empty correlation id")
	}
	applied, err := r.movePayment(ctx, id, PaymentAwaitingInitiation, PaymentAwaitingConfirmation,
		func(q *gorm.DB) *gorm.DB { return q.Where("payment_correlation_id IS NULL") },
		map[string]any{"payment_correlation_id": correlationID},
		"checkout", "payment_initiated", "correlation_id="+correlationID)
	if isDuplicateKey(err) {
		return false, fmt.Errorf("%w: %s", ErrDuplicateCorrelation, correlationID)
	}
	return applied, err
}

func (r *Repo) MarkInitiationFailed(ctx context.Context, id, reason string) (bool, error) {
	reason = text.Truncate(reason, 250)
	return r.movePayment(ctx, id, PaymentAwaitingInitiation, PaymentInitiationFailed,
		nil,
		map[string]any{"payment_error": reason},
		"checkout", "initiation_failed", reason)
}

// SettlePayment applies the provider's terminal result. It is a no-op (false)
// when the order already left awaiting_confirmation, so redelivered or
// out-of-order callbacks cannot overwrite an earlier result.
func (r *Repo) SettlePayment(ctx context.Context, id, correlationID string, s Settlement) (bool, error) {
	if s.Status != PaymentPaid && s.Status != PaymentFailed {
		return false, fmt.Errorf("%w: settle to %s", ErrInvalidTransition, s.Status)
	}
	at := s.At
	if at.IsZero() {
		at = time.Now()
	}

	set := map[string]any{"provider_metadata": s.Metadata}
	if s.ReconciliationFlag != nil {
		set["reconciliation_flag"] = text.Truncate(*s.ReconciliationFlag, 250)
	}
	if s.Status == PaymentPaid {
		set["paid_at"] = at
	}

	return r.movePayment(ctx, id, PaymentAwaitingConfirmation, s.Status,
		func(q *gorm.DB) *gorm.DB { return q.Where("payment_correlation_id = ?", correlationID) },
		set,
		"callback", "payment_callback", "correlation_id="+correlationID)
}

func (r *Repo) movePayment(
	ctx context.Context,
	id string,
	from, to PaymentStatus,
	cond func(*gorm.DB) *gorm.DB,
	set map[string]any,
	actor, action, note string,
) (bool, error) {
	if !CanTransition(from, to) {
		return false, ErrInvalidTransition
	}

	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		upd := map[string]any{"payment_status": to, "updated_at": now}
		for k, v := range set {
			upd[k] = v
		}

		q := tx.Model(&Order{}).Where("id = ? AND payment_status = ?", id, from)
		if cond != nil {
			q = cond(q)
		}
		res := q.Updates(upd)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true

		var notePtr *string
		if note != "" {
			n := text.Truncate(note, 250)
			notePtr = &n
		}
		return tx.Create(&OrderEvent{
			ID:         uuid.NewString(),
			OrderID:    id,
			Actor:      actor,
			Action:     action,
			FromStatus: string(from),
			ToStatus:   string(to),
			Note:       notePtr,
			CreatedAt:  now,
		}).Error
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
