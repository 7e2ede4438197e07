package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/http/middleware"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/orders"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/shared/apperr"
)

type StatusReader interface {
	GetStatus(ctx context.Context, id string) (orders.StatusView, error)
}

type OrdersHandler struct {
	Store StatusReader
}

func NewOrdersHandler(store StatusReader) *OrdersHandler {
	return &OrdersHandler{Store: store}
}

// GET /api/orders/:id/status
func (h *OrdersHandler) Status(c *gin.Context) {
	st, err := h.Store.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Order not found."))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, st)
}
