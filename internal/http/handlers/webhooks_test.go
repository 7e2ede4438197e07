package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/payments"
)

type processorFunc func(ctx context.Context, raw []byte) (payments.Result, error)

func (f processorFunc) HandleRaw(ctx context.Context, raw []byte) (payments.Result, error) {
	return f(ctx, raw)
}

func TestCallbackHandler_Acknowledgment(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		result   payments.Result
		err      error
		wantCode int
		wantBody string
	}{
		{
			name:     "applied",
			result:   payments.Result{Outcome: payments.OutcomeApplied},
			wantCode: http.StatusOK,
			wantBody: `{"ResultCode":0,"ResultDesc":"Accepted"}`,
		},
		{
			name:     "unknown correlation is still acknowledged",
			result:   payments.Result{Outcome: payments.OutcomeUnknown},
			wantCode: http.StatusOK,
			wantBody: `{"ResultCode":0,"ResultDesc":"Accepted"}`,
		},
		{
			name:     "store failure asks for redelivery",
			err:      errors.New("database is locked"),
			wantCode: http.StatusInternalServerError,
			wantBody: `{"ResultCode":1,"ResultDesc":"Temporary failure, retry"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []byte
			svc := processorFunc(func(ctx context.Context, raw []byte) (payments.Result, error) {
				got = raw
				return tt.result, tt.err
			})
			h := NewCallbackHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, "")

			r := gin.New()
			r.POST("/api/mpesa/callback", h.Handle)

			body := []byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":0}}}`)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/mpesa/callback", bytes.NewReader(body)))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
			assert.Equal(t, body, got)
		})
	}
}
