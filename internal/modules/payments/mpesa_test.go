package payments

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type darajaStub struct {
	tokenCalls atomic.Int32
	pushCalls  atomic.Int32
	lastPush   stkPushRequest
	push       func(w http.ResponseWriter, r *http.Request)
}

func (d *darajaStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		d.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"AT-1","expires_in":"3599"}`))
	})
	mux.HandleFunc("/mpesa/stkpush/v1/process", func(w http.ResponseWriter, r *http.Request) {
		d.pushCalls.Add(1)
		assert.Equal(t, "Bearer AT-1", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&d.lastPush)
		d.push(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL string) *MpesaClient {
	c := NewMpesaClient(MpesaConfig{
		BaseURL:          baseURL,
		ConsumerKey:      "key",
		ConsumerSecret:   "secret",
		Shortcode:        "174379",
		Passkey:          "pk",
		CallbackURL:      "https://shop.example/api/mpesa/callback",
		AccountReference: "ButcherSauce",
		TransactionDesc:  "Payment for Order",
		TokenSkew:        time.Minute,
	}, nil)
	c.now = func() time.Time { return time.Date(2026, 10, 16, 7, 30, 0, 0, time.UTC) }
	return c
}

func TestMpesaClient_InitiateSuccess(t *testing.T) {
	stub := &darajaStub{push: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_161020261030","ResponseCode":"0","ResponseDescription":"Success"}`))
	}}
	c := newTestClient(stub.server(t).URL)

	id, err := c.Initiate(context.Background(), "0712 345 678", 150050)
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_161020261030", id)

	req := stub.lastPush
	assert.Equal(t, "20261016103000", req.Timestamp, "timestamps are EAT")
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("174379pk20261016103000")), req.Password)
	assert.Equal(t, "CustomerPayBillOnline", req.TransactionType)
	assert.Equal(t, int64(1501), req.Amount)
	assert.Equal(t, "254712345678", req.PartyA)
	assert.Equal(t, "254712345678", req.PhoneNumber)
	assert.Equal(t, "174379", req.PartyB)

	_, err = c.Initiate(context.Background(), "0712345678", 100)
	require.NoError(t, err)
	assert.Equal(t, int32(1), stub.tokenCalls.Load(), "token is reused")
	assert.Equal(t, int32(2), stub.pushCalls.Load())
}

func TestMpesaClient_Classification(t *testing.T) {
	tests := []struct {
		name     string
		push     func(w http.ResponseWriter, r *http.Request)
		wantKind ErrorKind
		wantCode string
	}{
		{
			name: "provider error body",
			push: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"requestId":"r","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`))
			},
			wantKind: KindRejected,
			wantCode: "400.002.02",
		},
		{
			name: "non zero response code",
			push: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"CheckoutRequestID":"ws_CO_1","ResponseCode":"1","ResponseDescription":"rejected"}`))
			},
			wantKind: KindRejected,
			wantCode: "1",
		},
		{
			name: "bare 503",
			push: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantKind: KindTransient,
		},
		{
			name: "html body",
			push: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>gateway</html>`))
			},
			wantKind: KindMalformed,
		},
		{
			name: "missing checkout id",
			push: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"ResponseCode":"0"}`))
			},
			wantKind: KindMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &darajaStub{push: tt.push}
			c := newTestClient(stub.server(t).URL)

			_, err := c.Initiate(context.Background(), "0712345678", 1000)
			require.Error(t, err)

			var ie *InitiationError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.wantKind, ie.Kind)
			assert.Equal(t, tt.wantCode, ie.Code)
			assert.Equal(t, int32(1), stub.pushCalls.Load(), "no retries")
		})
	}
}

func TestMpesaClient_TimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	stub := &darajaStub{push: func(w http.ResponseWriter, r *http.Request) {
		<-release
	}}
	srv := stub.server(t)
	defer close(release)
	c := newTestClient(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Initiate(ctx, "0712345678", 1000)
	require.Error(t, err)
	assert.Equal(t, KindTransient, KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMpesaClient_BadPhoneNeverCallsProvider(t *testing.T) {
	stub := &darajaStub{push: func(w http.ResponseWriter, r *http.Request) {}}
	c := newTestClient(stub.server(t).URL)

	_, err := c.Initiate(context.Background(), "12345", 1000)
	assert.ErrorIs(t, err, ErrInvalidPhone)
	assert.Equal(t, int32(0), stub.tokenCalls.Load())
}

func TestMockInitiator(t *testing.T) {
	m := &MockInitiator{}
	a, err := m.Initiate(context.Background(), "0712345678", 1000)
	require.NoError(t, err)
	b, err := m.Initiate(context.Background(), "0712345678", 1000)
	require.NoError(t, err)
	assert.Regexp(t, `^ws_CO_\d+$`, a)
	assert.NotEqual(t, a, b)

	slow := &MockInitiator{Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = slow.Initiate(ctx, "0712345678", 1000)
	assert.Equal(t, KindTransient, KindOf(err))
}
