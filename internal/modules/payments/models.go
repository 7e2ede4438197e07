package payments

import (
	"time"

	"gorm.io/datatypes"
)

const ProviderMpesa = "mpesa"

// ProviderEvent records every callback delivery. (provider, event_id) is
// unique, so a redelivered body is recognised and applied at most once.
// Events whose correlation id matched no order stay unprocessed
// (ProcessedAt nil) until Replay picks them up.
type ProviderEvent struct {
	ID            string         `gorm:"type:char(36);primaryKey"`
	Provider      string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_provider_events_provider_event,priority:1"`
	EventID       string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_provider_events_provider_event,priority:2"`
	EventType     string         `gorm:"type:varchar(64);not null"`
	CorrelationID string         `gorm:"type:varchar(128);not null;index:ix_provider_events_correlation_id"`
	OrderID       *string        `gorm:"type:char(36)"`
	PayloadJSON   datatypes.JSON `gorm:"type:json;not null"`

	ReceivedAt   time.Time `gorm:"not null"`
	ProcessedAt  *time.Time
	ProcessError *string `gorm:"type:varchar(255)"`
}

func (ProviderEvent) TableName() string { return "provider_events" }

const (
	eventStkCallback = "stk_callback"
	eventMalformed   = "malformed"
)

func Models() []any { return []any{&ProviderEvent{}} }
