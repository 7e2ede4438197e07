package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/payments"
)

type stkItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value,omitempty"`
}

type stkCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        int    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []stkItem `json:"Item"`
	} `json:"CallbackMetadata,omitempty"`
}

type callbackEnvelope struct {
	Body struct {
		StkCallback stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

// buildCallback renders the body Daraja posts for a finished STK push.
func buildCallback(checkoutID string, code int, desc string, amount float64, receipt, phone string, at time.Time) ([]byte, error) {
	var env callbackEnvelope
	cb := &env.Body.StkCallback
	cb.MerchantRequestID = fmt.Sprintf("%d-%d-1", at.Unix()%100000, at.UnixNano()%100000000)
	cb.CheckoutRequestID = checkoutID
	cb.ResultCode = code
	cb.ResultDesc = desc

	if code == 0 {
		cb.CallbackMetadata = &struct {
			Item []stkItem `json:"Item"`
		}{Item: []stkItem{
			{Name: "Amount", Value: amount},
			{Name: "MpesaReceiptNumber", Value: receipt},
			{Name: "Balance"},
			{Name: "TransactionDate", Value: at.Format("20060102150405")},
			{Name: "PhoneNumber", Value: phone},
		}}
	}
	return json.Marshal(env)
}

func callbackCmd() *cobra.Command {
	var (
		url     string
		secret  string
		code    int
		desc    string
		amount  float64
		receipt string
		phone   string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "callback <checkout-request-id>",
		Short: "Post a simulated Daraja STK callback",
		Example: `  paytool callback ws_CO_1610202610211512345 --amount 1500
  paytool callback ws_CO_1610202610211512345 --code 1032 --desc "Request cancelled by user"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if desc == "" {
				desc = "The service request is processed successfully."
				if code != 0 {
					desc = "Request failed"
				}
			}
			now := time.Now()
			body, err := buildCallback(args[0], code, desc, amount, receipt, phone, now)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var sig string
			if secret != "" {
				sig = payments.Sign([]byte(secret), now.Unix(), body)
				fmt.Fprintf(out, "%s: %s\n", payments.SignatureHeader, sig)
			}
			fmt.Fprintf(out, "Body: %s\n", body)
			if dryRun {
				fmt.Fprintln(out, "[dry run] not sent")
				return nil
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			if sig != "" {
				req.Header.Set(payments.SignatureHeader, sig)
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			fmt.Fprintf(out, "Status: %d\nResponse: %s\n", resp.StatusCode, rb)
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("callback not accepted: status %d", resp.StatusCode)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&url, "url", "http://localhost:8080/api/mpesa/callback", "callback endpoint")
	f.StringVar(&secret, "secret", v.GetString("mpesa_callback_secret"), "HMAC secret (default $MPESA_CALLBACK_SECRET)")
	f.IntVar(&code, "code", 0, "Daraja ResultCode; 0 is success, 1032 cancelled by user")
	f.StringVar(&desc, "desc", "", "ResultDesc")
	f.Float64Var(&amount, "amount", 1, "amount in shillings reported on success")
	f.StringVar(&receipt, "receipt", "SIM0000000", "M-Pesa receipt number")
	f.StringVar(&phone, "phone", "254708374149", "payer MSISDN")
	f.BoolVar(&dryRun, "dry-run", false, "print the body and signature without sending")
	return cmd
}
