package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/http/middleware"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/http/validation"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/checkout"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/orders"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/shared/apperr"
)

// OrderPlacer is checkout.IntakeService as seen by the handler.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, in checkout.PlaceOrderInput) (checkout.PlaceOrderResult, error)
}

type CheckoutHandler struct {
	Intake OrderPlacer
	Logger *slog.Logger
}

func NewCheckoutHandler(intake OrderPlacer, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{Intake: intake, Logger: logger}
}

type customerRequest struct {
	Name           string `json:"name" binding:"required"`
	Email          string `json:"email"`
	Phone          string `json:"phone" binding:"required"`
	Fulfillment    string `json:"fulfillment" binding:"required,oneof=delivery pickup"`
	Address        string `json:"address"`
	PickupLocation string `json:"pickupLocation"`
}

type itemRequest struct {
	ProductRef     string          `json:"productRef"`
	Name           string          `json:"name"`
	Quantity       int             `json:"quantity" binding:"min=1"`
	UnitPriceCents int64           `json:"unitPriceCents" binding:"gte=0"`
	Preparation    json.RawMessage `json:"preparation"`
}

type paymentRequest struct {
	Method string `json:"method" binding:"required"`
}

type placeOrderRequest struct {
	Customer   customerRequest `json:"customer"`
	Items      []itemRequest   `json:"items" binding:"required,min=1,max=100,dive"`
	Payment    paymentRequest  `json:"payment"`
	TotalCents int64           `json:"totalCents"`
}

type placeOrderResponse struct {
	OrderID       string               `json:"orderId"`
	PaymentStatus orders.PaymentStatus `json:"paymentStatus"`
	Error         string               `json:"error,omitempty"`
}

const initiationFailedMsg = "We could not send the M-Pesa prompt. Please try again."

// methodAliases maps the storefront's names onto payment methods.
var methodAliases = map[string]orders.PaymentMethod{
	"mpesa": orders.MethodProviderPush,
	"cash":  orders.MethodPayOnFulfillment,
	"card":  orders.MethodPreAuthorized,
}

func paymentMethod(s string) orders.PaymentMethod {
	s = strings.ToLower(strings.TrimSpace(s))
	if m, ok := methodAliases[s]; ok {
		return m
	}
	return orders.PaymentMethod(s)
}

// POST /api/orders
func (h *CheckoutHandler) Post(c *gin.Context) {
	var in placeOrderRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid order.", validation.FromBindError(err)))
		return
	}

	res, err := h.Intake.PlaceOrder(c.Request.Context(), in.toInput())
	if err != nil {
		var ve *checkout.ValidationError
		switch {
		case errors.As(err, &ve):
			middleware.Fail(c, apperr.InvalidErr("Invalid order.", ve.Fields))
		case errors.Is(err, checkout.ErrInitiationFailed):
			if res.OrderID == "" {
				middleware.Fail(c, apperr.BadGatewayErr(initiationFailedMsg, err))
				return
			}
			// the order is kept; the client may retry with a new order
			c.JSON(http.StatusBadGateway, placeOrderResponse{
				OrderID:       res.OrderID,
				PaymentStatus: res.PaymentStatus,
				Error:         initiationFailedMsg,
			})
		case errors.Is(err, context.DeadlineExceeded):
			middleware.Fail(c, apperr.UnavailableErr("Checkout is busy. Please try again.", err))
		default:
			middleware.Fail(c, apperr.Wrap(err))
		}
		return
	}

	c.JSON(http.StatusCreated, placeOrderResponse{OrderID: res.OrderID, PaymentStatus: res.PaymentStatus})
}

func (r placeOrderRequest) toInput() checkout.PlaceOrderInput {
	items := make([]checkout.ItemInput, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, checkout.ItemInput{
			ProductRef:     it.ProductRef,
			Name:           it.Name,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
			Preparation:    it.Preparation,
		})
	}
	return checkout.PlaceOrderInput{
		Customer: checkout.CustomerInput{
			Name:           r.Customer.Name,
			Email:          r.Customer.Email,
			Phone:          r.Customer.Phone,
			Fulfillment:    orders.Fulfillment(r.Customer.Fulfillment),
			Address:        r.Customer.Address,
			PickupLocation: r.Customer.PickupLocation,
		},
		Items:      items,
		Method:     paymentMethod(r.Payment.Method),
		TotalCents: r.TotalCents,
	}
}
