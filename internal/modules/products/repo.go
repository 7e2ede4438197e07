package products

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/shared/slug"
)

var ErrInvalidProduct = errors.New("invalid product")

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) List(ctx context.Context, includeArchived bool) ([]Product, error) {
	q := r.db.WithContext(ctx).Order("ref ASC")
	if !includeArchived {
		q = q.Where("status = ?", StatusActive)
	}
	var items []Product
	err := q.Find(&items).Error
	return items, err
}

// UnitPrice returns the current price of an active product. ok is false when
// the ref is unknown or archived.
func (r *Repo) UnitPrice(ctx context.Context, ref string) (int64, bool, error) {
	var p Product
	err := r.db.WithContext(ctx).
		Select("ref", "price_cents").
		First(&p, "ref = ? AND status = ?", ref, StatusActive).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return p.PriceCents, true, nil
}

// Upsert creates or reprices a product. An empty ref is derived from the name.
func (r *Repo) Upsert(ctx context.Context, p Product) error {
	p.Ref = strings.TrimSpace(p.Ref)
	if p.Ref == "" {
		p.Ref = slug.FromName(p.Name)
	}
	if p.Ref == "" || p.PriceCents < 0 {
		return ErrInvalidProduct
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	if p.Status != StatusActive && p.Status != StatusArchived {
		return ErrInvalidProduct
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ref"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "price_cents", "currency", "status", "updated_at"}),
	}).Create(&p).Error
}
