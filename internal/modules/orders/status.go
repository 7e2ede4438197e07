package orders

type PaymentStatus string

const (
	PaymentNotRequired          PaymentStatus = "not_required"
	PaymentAwaitingInitiation   PaymentStatus = "awaiting_initiation"
	PaymentAwaitingConfirmation PaymentStatus = "awaiting_confirmation"
	PaymentInitiationFailed     PaymentStatus = "initiation_failed"
	PaymentPaid                 PaymentStatus = "paid"
	PaymentFailed               PaymentStatus = "failed"
)

// Payment status only moves forward. There is no timed-out state here: giving
// up on a pending payment is a client-side interpretation, and a late callback
// must still be able to settle the order.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentAwaitingInitiation:   {PaymentAwaitingConfirmation, PaymentInitiationFailed},
	PaymentAwaitingConfirmation: {PaymentPaid, PaymentFailed},
}

func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentNotRequired, PaymentInitiationFailed, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentNotRequired, PaymentAwaitingInitiation, PaymentAwaitingConfirmation,
		PaymentInitiationFailed, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is an edge of the payment state machine.
func CanTransition(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InitialPaymentStatus is the status an order is created with.
func InitialPaymentStatus(m PaymentMethod) PaymentStatus {
	switch m {
	case MethodProviderPush:
		return PaymentAwaitingInitiation
	case MethodPreAuthorized:
		// money was captured before checkout
		return PaymentPaid
	default:
		return PaymentNotRequired
	}
}

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusFulfilled  OrderStatus = "fulfilled"
	StatusCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusFulfilled, StatusCancelled},
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusFulfilled || s == StatusCancelled
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusFulfilled, StatusCancelled:
		return true
	}
	return false
}

func CanTransitionOrder(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
