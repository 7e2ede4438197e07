package orders

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentMethod string

const (
	MethodProviderPush     PaymentMethod = "provider_push"
	MethodPayOnFulfillment PaymentMethod = "pay_on_fulfillment"
	MethodPreAuthorized    PaymentMethod = "pre_authorized"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodProviderPush, MethodPayOnFulfillment, MethodPreAuthorized:
		return true
	}
	return false
}

type Fulfillment string

const (
	FulfillmentDelivery Fulfillment = "delivery"
	FulfillmentPickup   Fulfillment = "pickup"
)

type Order struct {
	ID string `gorm:"type:char(36);primaryKey"`

	CustomerName      string      `gorm:"type:varchar(120);not null"`
	CustomerEmail     string      `gorm:"type:varchar(255)"`
	CustomerPhone     string      `gorm:"type:varchar(32);not null"`
	Fulfillment       Fulfillment `gorm:"type:varchar(16);not null"`
	FulfillmentTarget string      `gorm:"type:varchar(255);not null"` // delivery address or pickup point

	TotalCents int64  `gorm:"not null"`
	Currency   string `gorm:"type:char(3);not null"`

	PaymentMethod        PaymentMethod `gorm:"type:varchar(32);not null"`
	PaymentCorrelationID *string       `gorm:"type:varchar(128);uniqueIndex:ux_orders_payment_correlation_id"`
	PaymentStatus        PaymentStatus `gorm:"type:varchar(32);not null;index:ix_orders_payment_status"`
	PaymentError         *string       `gorm:"type:varchar(255)"`
	ProviderMetadata     datatypes.JSON `gorm:"type:json"`
	ReconciliationFlag   *string       `gorm:"type:varchar(255)"`

	OrderStatus OrderStatus `gorm:"type:varchar(32);not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	PaidAt    *time.Time

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string { return "orders" }

// IsPaid is derived from PaymentStatus; it is never stored.
func (o Order) IsPaid() bool { return o.PaymentStatus == PaymentPaid }

// OrderItem is a price snapshot taken at checkout.
type OrderItem struct {
	ID       string `gorm:"type:char(36);primaryKey"`
	OrderID  string `gorm:"type:char(36);not null;index:ix_order_items_order_id"`
	Position int    `gorm:"not null"`

	ProductRef      string         `gorm:"type:varchar(128);not null"`
	ProductName     string         `gorm:"type:varchar(255);not null"`
	Quantity        int            `gorm:"not null"`
	UnitPriceCents  int64          `gorm:"not null"`
	LineTotalCents  int64          `gorm:"not null"`
	PreparationJSON datatypes.JSON `gorm:"type:json"`

	CreatedAt time.Time `gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }

// OrderEvent is the append-only audit trail of applied transitions.
type OrderEvent struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	OrderID    string    `gorm:"type:char(36);not null;index:ix_order_events_order_id"`
	Actor      string    `gorm:"type:varchar(64);not null"` // checkout|callback|admin:<id>
	Action     string    `gorm:"type:varchar(32);not null"`
	FromStatus string    `gorm:"type:varchar(32);not null"`
	ToStatus   string    `gorm:"type:varchar(32);not null"`
	Note       *string   `gorm:"type:varchar(255)"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (OrderEvent) TableName() string { return "order_events" }

// StatusView is the read model served to polling clients.
type StatusView struct {
	OrderID       string        `json:"orderId"`
	OrderStatus   OrderStatus   `json:"orderStatus"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	IsPaid        bool          `json:"isPaid"`
}

// Models lists every table owned by this module, in creation order.
func Models() []any {
	return []any{&Order{}, &OrderItem{}, &OrderEvent{}}
}
