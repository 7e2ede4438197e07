package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/orders"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/payments"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/shared/money"
)

// CatalogPricer reports the current catalog price of a product.
type CatalogPricer interface {
	UnitPrice(ctx context.Context, productRef string) (priceCents int64, ok bool, err error)
}

const maxItems = 100

var vld = validator.New()

// validate checks the request in isolation and returns the normalised payer
// phone for provider push orders.
func validate(in PlaceOrderInput) (string, error) {
	ve := &ValidationError{}

	c := in.Customer
	if strings.TrimSpace(c.Name) == "" {
		ve.add("customer.name", "required")
	}
	if e := strings.TrimSpace(c.Email); e != "" {
		if err := vld.Var(e, "email"); err != nil {
			ve.add("customer.email", "invalid email")
		}
	}

	phone := strings.TrimSpace(c.Phone)
	if phone == "" {
		ve.add("customer.phone", "required")
	} else if in.Method == orders.MethodProviderPush {
		n, err := payments.NormalizeMSISDN(phone)
		if err != nil {
			ve.add("customer.phone", "must be a Kenyan mobile number")
		}
		phone = n
	}

	switch c.Fulfillment {
	case orders.FulfillmentDelivery:
		if strings.TrimSpace(c.Address) == "" {
			ve.add("customer.address", "required for delivery")
		}
	case orders.FulfillmentPickup:
		if strings.TrimSpace(c.PickupLocation) == "" {
			ve.add("customer.pickupLocation", "required for pickup")
		}
	default:
		ve.add("customer.fulfillment", "must be delivery or pickup")
	}

	if !in.Method.Valid() {
		ve.add("payment.method", "unsupported payment method")
	}

	if len(in.Items) == 0 {
		ve.add("items", "at least one item is required")
	}
	if len(in.Items) > maxItems {
		ve.addf("items", "at most %d items", maxItems)
	}

	var sum int64
	overflow := false
	for i, it := range in.Items {
		p := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(it.ProductRef) == "" {
			ve.add(p+".productRef", "required")
		}
		if strings.TrimSpace(it.Name) == "" {
			ve.add(p+".name", "required")
		}
		if it.Quantity < 1 {
			ve.add(p+".quantity", "must be at least 1")
		}
		if it.UnitPriceCents < 0 {
			ve.add(p+".unitPriceCents", "must not be negative")
		}
		if len(it.Preparation) > 0 && !json.Valid(it.Preparation) {
			ve.add(p+".preparation", "must be valid JSON")
		}
		if it.Quantity > 0 && it.UnitPriceCents > 0 {
			if it.UnitPriceCents > math.MaxInt64/int64(it.Quantity) {
				overflow = true
				continue
			}
			line := int64(it.Quantity) * it.UnitPriceCents
			if sum > math.MaxInt64-line {
				overflow = true
				continue
			}
			sum += line
		}
	}

	switch {
	case overflow:
		ve.add("totalCents", "order total is too large")
	case in.TotalCents <= 0 && in.Method == orders.MethodProviderPush:
		ve.add("totalCents", "must be positive for mobile money")
	case in.TotalCents < 0:
		ve.add("totalCents", "must not be negative")
	case len(ve.Fields) == 0 && in.TotalCents != sum:
		ve.addf("totalCents", "does not match item total %s", money.Format(sum, ""))
	}

	return phone, ve.orNil()
}

// checkPrices compares each line with the catalog. tolerancePct 0 demands an
// exact match.
func checkPrices(ctx context.Context, pricer CatalogPricer, items []ItemInput, tolerancePct float64) error {
	ve := &ValidationError{}
	for i, it := range items {
		catalog, ok, err := pricer.UnitPrice(ctx, it.ProductRef)
		if err != nil {
			return fmt.Errorf("catalog price %s: %w", it.ProductRef, err)
		}
		p := fmt.Sprintf("items[%d]", i)
		if !ok {
			ve.add(p+".productRef", "unknown product")
			continue
		}
		diff := it.UnitPriceCents - catalog
		if diff < 0 {
			diff = -diff
		}
		if float64(diff)*100 > float64(catalog)*tolerancePct {
			ve.addf(p+".unitPriceCents", "price changed, current price is %s", money.Format(catalog, ""))
		}
	}
	return ve.orNil()
}
