package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/http/middleware"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/http/validation"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/orders"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/shared/apperr"
)

type Transitioner interface {
	Transition(ctx context.Context, in orders.TransitionInput) (orders.TransitionResult, error)
}

type OrdersHandler struct {
	Svc Transitioner
}

func NewOrdersHandler(svc Transitioner) *OrdersHandler {
	return &OrdersHandler{Svc: svc}
}

type transitionRequest struct {
	OrderStatus string `json:"orderStatus" binding:"required,oneof=pending processing fulfilled cancelled"`
	Note        string `json:"note" binding:"max=250"`
}

// PATCH /api/admin/orders/:id
// Moves fulfillment only; payment status is owned by the callback path.
func (h *OrdersHandler) Transition(c *gin.Context) {
	var in transitionRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid request.", validation.FromBindError(err)))
		return
	}

	res, err := h.Svc.Transition(c.Request.Context(), orders.TransitionInput{
		OrderID:     c.Param("id"),
		ActorUserID: middleware.AdminActor(c),
		To:          orders.OrderStatus(in.OrderStatus),
		Note:        in.Note,
	})
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrNotFound):
			middleware.Fail(c, apperr.NotFoundErr("Order not found."))
		case errors.Is(err, orders.ErrInvalidTransition):
			middleware.Fail(c, apperr.ConflictErr("Order cannot move to that status."))
		case errors.Is(err, orders.ErrNotActionable):
			middleware.Fail(c, apperr.InvalidErr("Invalid request.", nil))
		default:
			middleware.Fail(c, apperr.Wrap(err))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orderId":     res.OrderID,
		"from":        res.From,
		"orderStatus": res.To,
	})
}
