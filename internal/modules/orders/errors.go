package orders

import "errors"

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrNotActionable     = errors.New("order not actionable")

	// ErrDuplicateCorrelation means the provider handed out a correlation id
	// that another order already carries.
	ErrDuplicateCorrelation = errors.New("correlation id already attached to another order")
)
