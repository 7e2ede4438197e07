package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/shared/text"
)

// AdminService applies operator-driven fulfillment changes. It never touches
// payment status.
type AdminService struct {
	db *gorm.DB
}

func NewAdminService(db *gorm.DB) *AdminService { return &AdminService{db: db} }

type TransitionInput struct {
	OrderID     string
	ActorUserID string
	To          OrderStatus
	Note        string
}

type TransitionResult struct {
	OrderID string
	From    OrderStatus
	To      OrderStatus
}

func (s *AdminService) Transition(ctx context.Context, in TransitionInput) (TransitionResult, error) {
	if in.OrderID == "" || in.ActorUserID == "" || !in.To.Valid() {
		return TransitionResult{}, ErrNotActionable
	}

	var out TransitionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o Order
		if err := tx.Select("id", "order_status").First(&o, "id = ?", in.OrderID).Error; err != nil {
			return notFound(err)
		}

		from := o.OrderStatus
		if !CanTransitionOrder(from, in.To) {
			return ErrInvalidTransition
		}

		now := time.Now()
		res := tx.Model(&Order{}).
			Where("id = ? AND order_status = ?", o.ID, from). // optimistic guard
			Updates(map[string]any{
				"order_status": in.To,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// someone else moved it between read and write
			return ErrInvalidTransition
		}

		var notePtr *string
		if n := strings.TrimSpace(in.Note); n != "" {
			n = text.Truncate(n, 250)
			notePtr = &n
		}

		out = TransitionResult{OrderID: o.ID, From: from, To: in.To}
		return tx.Create(&OrderEvent{
			ID:         uuid.NewString(),
			OrderID:    o.ID,
			Actor:      text.Truncate("admin:"+in.ActorUserID, 64),
			Action:     "fulfillment",
			FromStatus: string(from),
			ToStatus:   string(in.To),
			Note:       notePtr,
			CreatedAt:  now,
		}).Error
	})
	if err != nil {
		return TransitionResult{}, err
	}
	return out, nil
}
