package payments

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Callback is the provider's asynchronous payment result, decoded from the
// Daraja Body.stkCallback envelope.
type Callback struct {
	CorrelationID     string // CheckoutRequestID
	MerchantRequestID string
	ResultCode        int
	ResultDesc        string

	AmountCents     int64
	HasAmount       bool
	Receipt         string
	PayerRef        string
	TransactionDate string
}

func (c Callback) Success() bool { return c.ResultCode == 0 }

type darajaEnvelope struct {
	Body struct {
		StkCallback *struct {
			MerchantRequestID string      `json:"MerchantRequestID"`
			CheckoutRequestID string      `json:"CheckoutRequestID"`
			ResultCode        json.Number `json:"ResultCode"`
			ResultDesc        string      `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback decodes a raw callback body. It fails with ErrMalformedEvent
// when the envelope, correlation id or result code is missing.
func ParseCallback(raw []byte) (Callback, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var env darajaEnvelope
	if err := dec.Decode(&env); err != nil {
		return Callback{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	sc := env.Body.StkCallback
	if sc == nil {
		return Callback{}, fmt.Errorf("%w: missing Body.stkCallback", ErrMalformedEvent)
	}
	if strings.TrimSpace(sc.CheckoutRequestID) == "" {
		return Callback{}, fmt.Errorf("%w: missing CheckoutRequestID", ErrMalformedEvent)
	}
	code, err := strconv.Atoi(sc.ResultCode.String())
	if err != nil {
		return Callback{}, fmt.Errorf("%w: ResultCode %q", ErrMalformedEvent, sc.ResultCode)
	}

	cb := Callback{
		CorrelationID:     strings.TrimSpace(sc.CheckoutRequestID),
		MerchantRequestID: sc.MerchantRequestID,
		ResultCode:        code,
		ResultDesc:        sc.ResultDesc,
	}
	for _, it := range sc.CallbackMetadata.Item {
		v := scalar(it.Value)
		switch it.Name {
		case "Amount":
			if cents, err := parseMinorUnits(v); err == nil {
				cb.AmountCents, cb.HasAmount = cents, true
			}
		case "MpesaReceiptNumber":
			cb.Receipt = v
		case "PhoneNumber":
			cb.PayerRef = v
		case "TransactionDate":
			cb.TransactionDate = v
		}
	}
	return cb, nil
}

// Metadata is the provider detail stored on the order with the terminal
// transition.
func (c Callback) Metadata() map[string]any {
	if !c.Success() {
		return map[string]any{
			"resultCode":        c.ResultCode,
			"resultDesc":        c.ResultDesc,
			"merchantRequestId": c.MerchantRequestID,
		}
	}
	m := map[string]any{
		"receipt":           c.Receipt,
		"payer":             c.PayerRef,
		"merchantRequestId": c.MerchantRequestID,
	}
	if c.HasAmount {
		m["amountCents"] = c.AmountCents
	}
	if c.TransactionDate != "" {
		m["transactionDate"] = c.TransactionDate
	}
	return m
}

func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// parseMinorUnits reads "1500", "1500.5" or "1500.50" as cents without going
// through float64.
func parseMinorUnits(s string) (int64, error) {
	s = strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(s, ".")
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return 0, fmt.Errorf("amount %q", s)
	}
	if len(frac) > 2 {
		if strings.Trim(frac[2:], "0") != "" {
			return 0, fmt.Errorf("amount %q has sub-cent precision", s)
		}
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q", s)
	}
	return w*100 + f, nil
}

// Signing

const SignatureHeader = "X-Callback-Signature"

// Sign returns the header value "t=<unix>,v1=<hex hmac-sha256(t.body)>".
func Sign(secret []byte, t int64, body []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", t, computeSig(secret, t, body))
}

// VerifySignature checks a Sign header against body. Timestamps further than
// tolerance from now are refused to limit replays; tolerance 0 disables the
// check.
func VerifySignature(secret []byte, header string, body []byte, now time.Time, tolerance time.Duration) error {
	var (
		ts  int64
		sig string
		err error
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrBadSignature
			}
		case "v1":
			sig = v
		}
	}
	if ts == 0 || sig == "" {
		return ErrBadSignature
	}
	if tolerance > 0 {
		d := now.Sub(time.Unix(ts, 0))
		if d < 0 {
			d = -d
		}
		if d > tolerance {
			return ErrBadSignature
		}
	}
	if !hmac.Equal([]byte(computeSig(secret, ts, body)), []byte(sig)) {
		return ErrBadSignature
	}
	return nil
}

func computeSig(secret []byte, t int64, body []byte) string {
	m := hmac.New(sha256.New, secret)
	m.Write([]byte(strconv.FormatInt(t, 10)))
	m.Write([]byte("."))
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

// EventID identifies a delivery for dedupe. Daraja sends no event id, so a
// redelivery is recognised by its identical body.
func EventID(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
