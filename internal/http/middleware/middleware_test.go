package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/shared/apperr"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	l := slog.New(slog.NewJSONHandler(io.Discard, nil))

	r := gin.New()
	r.Use(RequestID(), ErrorHandler(l), Recovery(l))
	return r
}

func TestErrorHandlerRendersAppError(t *testing.T) {
	r := newEngine()
	r.GET("/x", func(c *gin.Context) {
		Fail(c, apperr.InvalidErr("Invalid order.", map[string]string{"customer.phone": "required"}))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "rid-1")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "rid-1", w.Header().Get(HeaderRequestID))

	var body struct {
		Error     string            `json:"error"`
		RequestID string            `json:"request_id"`
		Fields    map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Invalid order.", body.Error)
	assert.Equal(t, "rid-1", body.RequestID)
	assert.Equal(t, "required", body.Fields["customer.phone"])
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	r := newEngine()
	r.GET("/x", func(c *gin.Context) {
		Fail(c, errors.New("dial tcp 10.0.0.3:3306: connection refused"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "3306")
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestRecoveryReturns500(t *testing.T) {
	r := newEngine()
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "request_id")
}

func TestRequireAdminToken(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		header string
		actor  string
		want   int
		wantBy string
	}{
		{"disabled", "", "Bearer anything", "", http.StatusForbidden, ""},
		{"missing header", "s3cret", "", "", http.StatusForbidden, ""},
		{"wrong token", "s3cret", "Bearer nope", "", http.StatusForbidden, ""},
		{"not bearer", "s3cret", "s3cret", "", http.StatusForbidden, ""},
		{"ok default actor", "s3cret", "Bearer s3cret", "", http.StatusOK, "token"},
		{"ok named actor", "s3cret", "Bearer s3cret", "ops-1", http.StatusOK, "ops-1"},
		{"actor at limit", "s3cret", "Bearer s3cret", strings.Repeat("a", MaxAdminActorLen), http.StatusOK, strings.Repeat("a", MaxAdminActorLen)},
		{"actor too long", "s3cret", "Bearer s3cret", strings.Repeat("a", MaxAdminActorLen+1), http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine()
			r.GET("/admin", RequireAdminToken(tt.token), func(c *gin.Context) {
				c.String(http.StatusOK, AdminActor(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.actor != "" {
				req.Header.Set(HeaderAdminActor, tt.actor)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, tt.wantBy, w.Body.String())
			}
		})
	}
}
