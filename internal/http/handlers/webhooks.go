package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/payments"
)

// Daraja callbacks are a few hundred bytes; anything near this is not one.
const maxCallbackBytes = 64 << 10

// CallbackProcessor is payments.CallbackService as seen by the handler.
type CallbackProcessor interface {
	HandleRaw(ctx context.Context, raw []byte) (payments.Result, error)
}

type CallbackHandler struct {
	Logger *slog.Logger
	Svc    CallbackProcessor

	// Secret enables X-Callback-Signature checks when non-empty.
	Secret    []byte
	Tolerance time.Duration
	Now       func() time.Time
}

func NewCallbackHandler(logger *slog.Logger, svc CallbackProcessor, secret string) *CallbackHandler {
	h := &CallbackHandler{Logger: logger, Svc: svc, Tolerance: 5 * time.Minute, Now: time.Now}
	if secret != "" {
		h.Secret = []byte(secret)
	}
	return h
}

type darajaAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// POST /api/mpesa/callback
// Anything we could parse or park is acknowledged; only store failures
// answer 500 so that Daraja delivers again.
func (h *CallbackHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, darajaAck{ResultCode: 1, ResultDesc: "Unreadable body"})
		return
	}

	if len(h.Secret) > 0 {
		if err := payments.VerifySignature(h.Secret, c.GetHeader(payments.SignatureHeader), body, h.Now(), h.Tolerance); err != nil {
			h.Logger.WarnContext(c.Request.Context(), "callback signature rejected", "client_ip", c.ClientIP())
			c.JSON(http.StatusUnauthorized, darajaAck{ResultCode: 1, ResultDesc: "Invalid signature"})
			return
		}
	}

	res, err := h.Svc.HandleRaw(c.Request.Context(), body)
	if err != nil {
		h.Logger.ErrorContext(c.Request.Context(), "callback not stored", "err", err)
		c.JSON(http.StatusInternalServerError, darajaAck{ResultCode: 1, ResultDesc: "Temporary failure, retry"})
		return
	}

	h.Logger.DebugContext(c.Request.Context(), "callback acknowledged", "outcome", res.Outcome, "order_id", res.OrderID)
	c.JSON(http.StatusOK, darajaAck{ResultCode: 0, ResultDesc: "Accepted"})
}
