package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type MpesaConfig struct {
	BaseURL          string
	ConsumerKey      string
	ConsumerSecret   string
	Shortcode        string
	Passkey          string
	CallbackURL      string
	AccountReference string
	TransactionDesc  string
	TokenSkew        time.Duration
}

// Daraja timestamps are East Africa Time.
var eat = time.FixedZone("EAT", 3*60*60)

// MpesaClient initiates Daraja STK push (Lipa na M-Pesa Online) payments.
type MpesaClient struct {
	cfg    MpesaConfig
	http   *http.Client
	tokens *TokenSource
	now    func() time.Time
	logger *slog.Logger
}

func NewMpesaClient(cfg MpesaConfig, hc *http.Client) *MpesaClient {
	if hc == nil {
		// per-call deadlines come from ctx
		hc = &http.Client{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &MpesaClient{cfg: cfg, http: hc, now: time.Now, logger: slog.Default()}
	c.tokens = NewTokenSource(c.fetchToken, cfg.TokenSkew)
	return c
}

func (c *MpesaClient) SetLogger(logger *slog.Logger) { c.logger = logger }

// Tokens exposes the access token source, e.g. to attach a shared cache.
func (c *MpesaClient) Tokens() *TokenSource { return c.tokens }

var _ Initiator = (*MpesaClient)(nil)

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// darajaError is the body Daraja returns with non-2xx statuses.
type darajaError struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (c *MpesaClient) Initiate(ctx context.Context, payer string, amountCents int64) (string, error) {
	phone, err := NormalizeMSISDN(payer)
	if err != nil {
		return "", &InitiationError{Kind: KindRejected, Msg: "payer phone", Err: err}
	}
	amount, err := WholeUnits(amountCents)
	if err != nil {
		return "", &InitiationError{Kind: KindRejected, Msg: "amount", Err: err}
	}

	token, err := c.tokens.ValidToken(ctx)
	if err != nil {
		return "", err
	}

	ts := c.now().In(eat).Format("20060102150405")
	body, err := json.Marshal(stkPushRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          Password(c.cfg.Shortcode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  c.cfg.AccountReference,
		TransactionDesc:   c.cfg.TransactionDesc,
	})
	if err != nil {
		return "", malformed("encode stk push request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/mpesa/stkpush/v1/process", bytes.NewReader(body))
	if err != nil {
		return "", malformed("build stk push request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	status, raw, err := c.do(req)
	if err != nil {
		return "", err
	}

	if status == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}
	if status < 200 || status > 299 {
		return "", classifyStatus(status, raw)
	}

	var out stkPushResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", malformed("decode stk push response", err)
	}
	if out.ResponseCode != "" && out.ResponseCode != "0" {
		return "", rejected(out.ResponseCode, out.ResponseDescription)
	}
	if out.CheckoutRequestID == "" {
		return "", malformed("stk push response without CheckoutRequestID", nil)
	}

	c.logger.InfoContext(ctx, "stk push accepted",
		"checkout_request_id", out.CheckoutRequestID,
		"merchant_request_id", out.MerchantRequestID,
	)
	return out.CheckoutRequestID, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"` // seconds, as a string
}

func (c *MpesaClient) fetchToken(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", 0, malformed("build token request", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	status, raw, err := c.do(req)
	if err != nil {
		return "", 0, err
	}
	if status < 200 || status > 299 {
		return "", 0, classifyStatus(status, raw)
	}

	var out tokenResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", 0, malformed("decode token response", err)
	}
	secs, err := strconv.Atoi(strings.TrimSpace(out.ExpiresIn))
	if err != nil || secs <= 0 {
		// Daraja tokens live for an hour
		secs = 3599
	}
	return out.AccessToken, time.Duration(secs) * time.Second, nil
}

func (c *MpesaClient) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, transient(req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, transient("read "+req.URL.Path, err)
	}
	return resp.StatusCode, raw, nil
}

// classifyStatus maps a non-2xx answer. A provider error body means the
// request was refused; a bare 5xx or 429 is worth another attempt later.
func classifyStatus(status int, raw []byte) error {
	var de darajaError
	if err := json.Unmarshal(raw, &de); err == nil && (de.ErrorCode != "" || de.ErrorMessage != "") {
		return rejected(de.ErrorCode, de.ErrorMessage)
	}
	if status >= 500 || status == http.StatusTooManyRequests {
		return transient(fmt.Sprintf("provider status %d", status), nil)
	}
	return malformed(fmt.Sprintf("provider status %d", status), nil)
}

// Password is the STK push password: base64(shortcode + passkey + timestamp).
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}
