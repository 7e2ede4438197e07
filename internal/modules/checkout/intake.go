package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/orders"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/payments"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/notify"
)

type CustomerInput struct {
	Name           string
	Email          string
	Phone          string
	Fulfillment    orders.Fulfillment
	Address        string
	PickupLocation string
}

type ItemInput struct {
	ProductRef     string
	Name           string
	Quantity       int
	UnitPriceCents int64
	Preparation    json.RawMessage // doneness, cut, sauce options
}

type PlaceOrderInput struct {
	Customer   CustomerInput
	Items      []ItemInput
	Method     orders.PaymentMethod
	TotalCents int64
}

type PlaceOrderResult struct {
	OrderID       string
	PaymentStatus orders.PaymentStatus
	CorrelationID string
}

// Replayer applies callbacks that arrived before the correlation id was
// stored (payments.CallbackService).
type Replayer interface {
	Replay(ctx context.Context, correlationID string) (payments.Result, error)
}

type Options struct {
	Currency          string
	InitiateTimeout   time.Duration
	PriceTolerancePct float64

	// HandoffAttempts bounds the correlation id write; HandoffBackoff grows
	// linearly between attempts.
	HandoffAttempts int
	HandoffBackoff  time.Duration
}

// IntakeService places orders and starts mobile money payment for them.
//
// Phase 1 persists the order in its own transaction. Phase 2 calls the
// provider outside any transaction, bounded by InitiateTimeout. Phase 3 hands
// the order to the callback with a conditional write. Writes after phase 1
// ignore caller cancellation: once the provider was asked, the outcome must be
// recorded.
type IntakeService struct {
	store     orders.Store
	initiator payments.Initiator
	replayer  Replayer
	pricer    CatalogPricer
	alerts    notify.Sink
	opts      Options
	logger    *slog.Logger
}

func NewIntakeService(store orders.Store, initiator payments.Initiator, alerts notify.Sink, opts Options) *IntakeService {
	if opts.Currency == "" {
		opts.Currency = "KES"
	}
	if opts.InitiateTimeout <= 0 {
		opts.InitiateTimeout = 8 * time.Second
	}
	if opts.HandoffAttempts <= 0 {
		opts.HandoffAttempts = 3
	}
	if opts.HandoffBackoff <= 0 {
		opts.HandoffBackoff = 200 * time.Millisecond
	}
	if alerts == nil {
		alerts = notify.Nop{}
	}
	return &IntakeService{store: store, initiator: initiator, alerts: alerts, opts: opts, logger: slog.Default()}
}

func (s *IntakeService) SetLogger(logger *slog.Logger) { s.logger = logger }

func (s *IntakeService) SetReplayer(r Replayer) { s.replayer = r }

func (s *IntakeService) SetPricer(p CatalogPricer) { s.pricer = p }

func (s *IntakeService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (PlaceOrderResult, error) {
	payer, err := validate(in)
	if err != nil {
		return PlaceOrderResult{}, err
	}
	if s.pricer != nil {
		if err := checkPrices(ctx, s.pricer, in.Items, s.opts.PriceTolerancePct); err != nil {
			return PlaceOrderResult{}, err
		}
	}

	// Phase 1
	o := s.buildOrder(in, payer)
	if err := s.store.Create(ctx, o); err != nil {
		return PlaceOrderResult{}, fmt.Errorf("create order: %w", err)
	}
	log := s.logger.With("order_id", o.ID, "payment_method", o.PaymentMethod)
	log.InfoContext(ctx, "order created", "total_cents", o.TotalCents, "payment_status", o.PaymentStatus)

	res := PlaceOrderResult{OrderID: o.ID, PaymentStatus: o.PaymentStatus}
	if o.PaymentMethod != orders.MethodProviderPush {
		return res, nil
	}

	// Phase 2
	ictx, cancel := context.WithTimeout(ctx, s.opts.InitiateTimeout)
	correlationID, ierr := s.initiator.Initiate(ictx, payer, o.TotalCents)
	cancel()

	wctx := context.WithoutCancel(ctx)
	correlationID = strings.TrimSpace(correlationID)
	if ierr == nil && correlationID == "" {
		ierr = &payments.InitiationError{Kind: payments.KindMalformed, Msg: "empty correlation id"}
	}

	// Phase 3
	if ierr != nil {
		return s.failInitiation(wctx, log, res, ierr)
	}

	applied, err := s.attach(wctx, o.ID, correlationID)
	if err != nil || !applied {
		// The payer has a prompt we can no longer join to the order.
		log.ErrorContext(ctx, "payment handoff lost", "correlation_id", correlationID, "err", err)
		s.alert(wctx, notify.Alert{
			Kind:          notify.KindHandoffLost,
			OrderID:       o.ID,
			CorrelationID: correlationID,
			Message:       "correlation id obtained but not stored; run paytool attach",
		})
		return res, nil
	}

	log.InfoContext(ctx, "payment initiated", "correlation_id", correlationID)
	return s.handedOff(wctx, log, res, correlationID), nil
}

// ResumeHandoff joins an order left in awaiting_initiation to the correlation
// id the provider issued for it, then applies any callback parked meanwhile.
// Calling it again for an order already carrying the id only replays.
func (s *IntakeService) ResumeHandoff(ctx context.Context, orderID, correlationID string) (PlaceOrderResult, error) {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return PlaceOrderResult{}, errors.New("empty correlation id")
	}
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return PlaceOrderResult{}, err
	}
	res := PlaceOrderResult{OrderID: o.ID, PaymentStatus: o.PaymentStatus}
	log := s.logger.With("order_id", o.ID, "payment_method", o.PaymentMethod)

	if o.PaymentCorrelationID != nil {
		if *o.PaymentCorrelationID != correlationID {
			return res, fmt.Errorf("%w: order carries correlation id %s", ErrHandoffConflict, *o.PaymentCorrelationID)
		}
		return s.handedOff(ctx, log, res, correlationID), nil
	}
	if o.PaymentMethod != orders.MethodProviderPush || o.PaymentStatus != orders.PaymentAwaitingInitiation {
		return res, fmt.Errorf("%w: order is %s", ErrHandoffConflict, o.PaymentStatus)
	}

	applied, err := s.attach(ctx, o.ID, correlationID)
	if err != nil {
		return res, err
	}
	if !applied {
		return res, fmt.Errorf("%w: order changed concurrently", ErrHandoffConflict)
	}
	log.InfoContext(ctx, "payment handoff resumed", "correlation_id", correlationID)
	return s.handedOff(ctx, log, res, correlationID), nil
}

// attach writes the correlation id, retrying transient store errors. A write
// that landed although its acknowledgment was lost counts as applied.
func (s *IntakeService) attach(ctx context.Context, orderID, correlationID string) (bool, error) {
	var (
		applied bool
		err     error
	)
	for i := 0; i < s.opts.HandoffAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(s.opts.HandoffBackoff * time.Duration(i)):
			}
		}
		applied, err = s.store.AttachCorrelation(ctx, orderID, correlationID)
		if errors.Is(err, orders.ErrDuplicateCorrelation) {
			return false, err
		}
		if err != nil {
			continue
		}
		if !applied && i > 0 {
			if o, gerr := s.store.Get(ctx, orderID); gerr == nil &&
				o.PaymentCorrelationID != nil && *o.PaymentCorrelationID == correlationID {
				return true, nil
			}
		}
		return applied, nil
	}
	return false, err
}

func (s *IntakeService) handedOff(ctx context.Context, log *slog.Logger, res PlaceOrderResult, correlationID string) PlaceOrderResult {
	if res.PaymentStatus == orders.PaymentAwaitingInitiation {
		res.PaymentStatus = orders.PaymentAwaitingConfirmation
	}
	res.CorrelationID = correlationID

	if s.replayer != nil {
		r, err := s.replayer.Replay(ctx, correlationID)
		if err != nil {
			log.ErrorContext(ctx, "replay of early callback failed", "correlation_id", correlationID, "err", err)
		} else if r.Outcome == payments.OutcomeApplied || r.Outcome == payments.OutcomeDuplicate {
			if r.Status != "" {
				res.PaymentStatus = r.Status
			}
		}
	}
	return res
}

func (s *IntakeService) failInitiation(ctx context.Context, log *slog.Logger, res PlaceOrderResult, ierr error) (PlaceOrderResult, error) {
	kind := payments.KindOf(ierr)
	log.WarnContext(ctx, "payment initiation failed", "kind", kind, "err", ierr)

	applied, err := s.store.MarkInitiationFailed(ctx, res.OrderID, ierr.Error())
	switch {
	case err != nil:
		log.ErrorContext(ctx, "record initiation failure", "err", err)
	case applied:
		res.PaymentStatus = orders.PaymentInitiationFailed
	}

	s.alert(ctx, notify.Alert{
		Kind:    notify.KindInitiationFailed,
		OrderID: res.OrderID,
		Message: "payment prompt could not be sent",
		Fields:  map[string]any{"kind": string(kind), "error": ierr.Error()},
	})
	return res, fmt.Errorf("%w: %w", ErrInitiationFailed, ierr)
}

func (s *IntakeService) buildOrder(in PlaceOrderInput, payer string) *orders.Order {
	c := in.Customer
	target := strings.TrimSpace(c.Address)
	if c.Fulfillment == orders.FulfillmentPickup {
		target = strings.TrimSpace(c.PickupLocation)
	}
	phone := strings.TrimSpace(c.Phone)
	if payer != "" {
		phone = payer
	}

	o := &orders.Order{
		CustomerName:      strings.TrimSpace(c.Name),
		CustomerEmail:     strings.TrimSpace(c.Email),
		CustomerPhone:     phone,
		Fulfillment:       c.Fulfillment,
		FulfillmentTarget: target,
		TotalCents:        in.TotalCents,
		Currency:          s.opts.Currency,
		PaymentMethod:     in.Method,
		PaymentStatus:     orders.InitialPaymentStatus(in.Method),
		OrderStatus:       orders.StatusPending,
		Items:             make([]orders.OrderItem, 0, len(in.Items)),
	}
	if o.PaymentStatus == orders.PaymentPaid {
		now := time.Now()
		o.PaidAt = &now
	}
	for _, it := range in.Items {
		var prep datatypes.JSON
		if len(it.Preparation) > 0 && string(it.Preparation) != "null" {
			prep = datatypes.JSON(it.Preparation)
		}
		o.Items = append(o.Items, orders.OrderItem{
			ProductRef:      strings.TrimSpace(it.ProductRef),
			ProductName:     strings.TrimSpace(it.Name),
			Quantity:        it.Quantity,
			UnitPriceCents:  it.UnitPriceCents,
			LineTotalCents:  int64(it.Quantity) * it.UnitPriceCents,
			PreparationJSON: prep,
		})
	}
	return o
}

func (s *IntakeService) alert(ctx context.Context, a notify.Alert) {
	if a.At.IsZero() {
		a.At = time.Now()
	}
	if err := s.alerts.Notify(ctx, a); err != nil {
		s.logger.ErrorContext(ctx, "alert failed", "kind", a.Kind, "err", err)
	}
}
