package products

import "time"

const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Product is a catalog entry checkout prices are checked against.
type Product struct {
	Ref        string    `gorm:"type:varchar(128);primaryKey"`
	Name       string    `gorm:"type:varchar(255);not null"`
	PriceCents int64     `gorm:"not null"`
	Currency   string    `gorm:"type:char(3);not null"`
	Status     string    `gorm:"type:varchar(16);not null;index:ix_catalog_products_status"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (Product) TableName() string { return "catalog_products" }

func Models() []any { return []any{&Product{}} }
