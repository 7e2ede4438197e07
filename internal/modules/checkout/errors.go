package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInitiationFailed is returned with a non-empty order id: the order exists
// (initiation_failed) but the payer never got a prompt.
var ErrInitiationFailed = errors.New("payment initiation failed")

// ErrHandoffConflict means an order cannot take the given correlation id.
var ErrHandoffConflict = errors.New("payment handoff conflict")

// ValidationError lists field problems keyed by request path
// (e.g. "customer.phone", "items[1].quantity").
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid order"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid order: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) addf(field, format string, args ...any) {
	e.add(field, fmt.Sprintf(format, args...))
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
