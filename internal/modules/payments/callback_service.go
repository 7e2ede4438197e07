package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/orders"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/notify"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/shared/text"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/storage"
)

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"   // terminal transition written
	OutcomeDuplicate Outcome = "duplicate" // redelivery, or order no longer awaiting confirmation
	OutcomeUnknown   Outcome = "unknown"   // no order carries the correlation id (yet)
	OutcomeMalformed Outcome = "malformed"
)

type Result struct {
	Outcome        Outcome
	OrderID        string
	Status         orders.PaymentStatus
	AmountMismatch bool
}

// CallbackService reconciles provider callbacks against orders. Callbacks
// arrive at least once and in any order; the conditional settle in the order
// store is what makes applying them safe.
type CallbackService struct {
	db      *gorm.DB
	alerts  notify.Sink
	archive storage.Storage
	logger  *slog.Logger
	now     func() time.Time

	parked func(tx *gorm.DB) // runs inside the parking transaction; tests only
}

func NewCallbackService(db *gorm.DB, alerts notify.Sink, archive storage.Storage) *CallbackService {
	if alerts == nil {
		alerts = notify.Nop{}
	}
	if archive == nil {
		archive = storage.Discard{}
	}
	return &CallbackService{db: db, alerts: alerts, archive: archive, logger: slog.Default(), now: time.Now}
}

func (s *CallbackService) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// HandleRaw parses and applies a raw callback body. Malformed bodies are
// recorded and reported but do not produce an error: the provider would only
// redeliver the same bytes.
func (s *CallbackService) HandleRaw(ctx context.Context, raw []byte) (Result, error) {
	cb, err := ParseCallback(raw)
	if err != nil {
		return s.recordMalformed(ctx, raw, err)
	}
	return s.Handle(ctx, cb, raw)
}

// Handle applies one parsed callback. An error means nothing was committed and
// the delivery should be retried by the provider.
func (s *CallbackService) Handle(ctx context.Context, cb Callback, raw []byte) (Result, error) {
	res, err := s.apply(ctx, cb, raw, EventID(raw))
	if err != nil || res.Outcome != OutcomeUnknown {
		return res, err
	}

	// The handoff may have committed after our lookup but before our park
	// was visible to its replay. Whichever side commits last sees the other.
	if _, err := orders.NewRepo(s.db).GetByCorrelationID(ctx, cb.CorrelationID); err == nil {
		r, err := s.Replay(ctx, cb.CorrelationID)
		if err != nil {
			return Result{}, err
		}
		if r.Outcome != OutcomeUnknown {
			return r, nil
		}
	}

	s.logger.WarnContext(ctx, "callback for unknown correlation id", "correlation_id", cb.CorrelationID)
	s.alert(ctx, notify.Alert{
		Kind:          notify.KindUnknownCorrelation,
		CorrelationID: cb.CorrelationID,
		Message:       "callback matched no order",
		Fields:        map[string]any{"result_code": cb.ResultCode},
	})
	return res, nil
}

func (s *CallbackService) apply(ctx context.Context, cb Callback, raw []byte, eventID string) (Result, error) {
	log := s.logger.With("correlation_id", cb.CorrelationID, "event_id", eventID[:16])

	var (
		res      Result
		expected int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()

		pe, fresh, err := s.recordEvent(ctx, tx, ProviderEvent{
			Provider:      ProviderMpesa,
			EventID:       eventID,
			EventType:     eventStkCallback,
			CorrelationID: cb.CorrelationID,
			PayloadJSON:   payloadJSON(raw),
			ReceivedAt:    now,
		})
		if err != nil {
			return err
		}
		if !fresh && pe.ProcessedAt != nil {
			res = Result{Outcome: OutcomeDuplicate}
			if pe.OrderID != nil {
				res.OrderID = *pe.OrderID
			}
			return nil
		}

		repo := orders.NewRepo(tx)
		ord, err := repo.GetByCorrelationID(ctx, cb.CorrelationID)
		if errors.Is(err, orders.ErrNotFound) {
			// parked until the order's handoff write lands
			res = Result{Outcome: OutcomeUnknown}
			if s.parked != nil {
				s.parked(tx)
			}
			return tx.Model(&ProviderEvent{}).Where("id = ?", pe.ID).
				Update("process_error", "unmatched correlation id").Error
		}
		if err != nil {
			return err
		}

		st := Settlement(cb, ord.TotalCents, now)
		expected = ChargedCents(ord.TotalCents)
		applied, err := repo.SettlePayment(ctx, ord.ID, cb.CorrelationID, st)
		if err != nil {
			return err
		}

		res = Result{Outcome: OutcomeDuplicate, OrderID: ord.ID, Status: ord.PaymentStatus}
		if applied {
			res = Result{Outcome: OutcomeApplied, OrderID: ord.ID, Status: st.Status, AmountMismatch: st.ReconciliationFlag != nil}
		}

		processed := now
		return tx.Model(&ProviderEvent{}).Where("id = ?", pe.ID).
			Updates(map[string]any{"processed_at": &processed, "process_error": nil, "order_id": ord.ID}).Error
	})
	if err != nil {
		log.ErrorContext(ctx, "callback apply failed", "err", err)
		return Result{}, err
	}

	switch res.Outcome {
	case OutcomeApplied:
		log.InfoContext(ctx, "callback applied", "order_id", res.OrderID, "payment_status", res.Status, "result_code", cb.ResultCode)
	case OutcomeDuplicate:
		log.InfoContext(ctx, "callback ignored, already settled", "order_id", res.OrderID)
	}

	if res.AmountMismatch {
		log.WarnContext(ctx, "paid amount differs from order total",
			"order_id", res.OrderID, "expected_cents", expected, "reported_cents", cb.AmountCents)
		s.alert(ctx, notify.Alert{
			Kind:          notify.KindAmountMismatch,
			OrderID:       res.OrderID,
			CorrelationID: cb.CorrelationID,
			Message:       "paid amount differs from order total",
			Fields:        map[string]any{"expected_cents": expected, "reported_cents": cb.AmountCents, "receipt": cb.Receipt},
		})
	}

	if res.Outcome != OutcomeDuplicate {
		s.store(ctx, eventID, raw)
	}
	return res, nil
}

// Replay applies callbacks that arrived before their order's correlation id
// was stored. Intake calls it right after the handoff write.
func (s *CallbackService) Replay(ctx context.Context, correlationID string) (Result, error) {
	var parked []ProviderEvent
	if err := s.db.WithContext(ctx).
		Where("provider = ? AND correlation_id = ? AND processed_at IS NULL", ProviderMpesa, correlationID).
		Order("received_at ASC").
		Find(&parked).Error; err != nil {
		return Result{}, err
	}

	res := Result{Outcome: OutcomeUnknown}
	for _, pe := range parked {
		raw := []byte(pe.PayloadJSON)
		cb, err := ParseCallback(raw)
		if err != nil {
			continue
		}
		// the stored payload may be re-encoded by the database, so the
		// original event id is reused instead of hashing it again
		r, err := s.apply(ctx, cb, raw, pe.EventID)
		if err != nil {
			return res, err
		}
		if r.Outcome == OutcomeApplied || res.Outcome == OutcomeUnknown {
			res = r
		}
	}
	return res, nil
}

// recordEvent inserts the delivery, or loads the existing row when the same
// body was seen before.
func (s *CallbackService) recordEvent(ctx context.Context, tx *gorm.DB, pe ProviderEvent) (ProviderEvent, bool, error) {
	pe.ID = uuid.NewString()
	res := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&pe)
	if res.Error != nil {
		return ProviderEvent{}, false, res.Error
	}
	if res.RowsAffected == 1 {
		return pe, true, nil
	}

	var existing ProviderEvent
	if err := tx.WithContext(ctx).
		First(&existing, "provider = ? AND event_id = ?", pe.Provider, pe.EventID).Error; err != nil {
		return ProviderEvent{}, false, err
	}
	return existing, false, nil
}

func (s *CallbackService) recordMalformed(ctx context.Context, raw []byte, perr error) (Result, error) {
	eventID := EventID(raw)
	now := s.now()
	msg := text.Truncate(perr.Error(), 250)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, _, err := s.recordEvent(ctx, tx, ProviderEvent{
			Provider:     ProviderMpesa,
			EventID:      eventID,
			EventType:    eventMalformed,
			PayloadJSON:  payloadJSON(raw),
			ReceivedAt:   now,
			ProcessedAt:  &now,
			ProcessError: &msg,
		})
		return err
	})
	if err != nil {
		return Result{}, err
	}

	s.logger.WarnContext(ctx, "malformed callback acknowledged", "event_id", eventID[:16], "err", perr)
	s.alert(ctx, notify.Alert{Kind: notify.KindMalformedCallback, Message: msg})
	s.store(ctx, eventID, raw)
	return Result{Outcome: OutcomeMalformed}, nil
}

func (s *CallbackService) alert(ctx context.Context, a notify.Alert) {
	if a.At.IsZero() {
		a.At = s.now()
	}
	if err := s.alerts.Notify(ctx, a); err != nil {
		s.logger.ErrorContext(ctx, "alert failed", "kind", a.Kind, "err", err)
	}
}

// store archives the raw body. Failures are logged only; the acknowledgment
// never waits on the archive.
func (s *CallbackService) store(ctx context.Context, eventID string, raw []byte) {
	key := s.now().UTC().Format("2006/01/02") + "/" + eventID + ".json"
	if _, err := s.archive.Put(ctx, bytes.NewReader(raw), storage.PutInput{Key: key, ContentType: "application/json"}); err != nil {
		s.logger.ErrorContext(ctx, "callback archive failed", "key", key, "err", err)
	}
}

// Settlement converts a callback into the terminal write for an order whose
// total is totalCents.
func Settlement(cb Callback, totalCents int64, at time.Time) orders.Settlement {
	meta, _ := json.Marshal(cb.Metadata())
	st := orders.Settlement{
		Status:   orders.PaymentFailed,
		Metadata: datatypes.JSON(meta),
		At:       at,
	}
	if !cb.Success() {
		return st
	}

	st.Status = orders.PaymentPaid
	if expected := ChargedCents(totalCents); cb.HasAmount && cb.AmountCents != expected {
		flag := fmt.Sprintf("amount mismatch: expected %d cents, provider reported %d", expected, cb.AmountCents)
		st.ReconciliationFlag = &flag
	}
	return st
}

// ChargedCents is what the payer is actually asked for: the total rounded up
// to whole shillings.
func ChargedCents(totalCents int64) int64 {
	whole, err := WholeUnits(totalCents)
	if err != nil {
		return totalCents
	}
	return whole * 100
}

func payloadJSON(raw []byte) datatypes.JSON {
	if json.Valid(raw) {
		return datatypes.JSON(raw)
	}
	// keep undecodable bodies as a JSON string
	b, _ := json.Marshal(string(raw))
	return datatypes.JSON(b)
}
