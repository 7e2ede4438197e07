package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDSN = "butcher:secret@tcp(127.0.0.1:3306)/butcher?parseTime=true"

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestFromViper_MockEnvironmentDefaults(t *testing.T) {
	cfg, err := FromViper(newViper(map[string]any{
		"db_dsn":            testDSN,
		"mpesa_environment": "mock",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 8*time.Second, cfg.Payment.InitiateTimeout)
	assert.Equal(t, "KES", cfg.Checkout.Currency)
	assert.False(t, cfg.Checkout.VerifyPrices, "an empty catalog must not reject every checkout")
	assert.Equal(t, sandboxBaseURL, cfg.Mpesa.BaseURL)
	assert.Equal(t, "ButcherSauce", cfg.Mpesa.AccountReference)
	assert.Equal(t, "", cfg.Archive.Driver)
}

func TestFromViper_LiveUsesProductionHost(t *testing.T) {
	cfg, err := FromViper(newViper(map[string]any{
		"db_dsn":                testDSN,
		"mpesa_environment":     "live",
		"mpesa_consumer_key":    "key",
		"mpesa_consumer_secret": "secret",
		"mpesa_shortcode":       "174379",
		"mpesa_passkey":         "pass",
		"mpesa_callback_url":    "https://shop.example/api/mpesa/callback",
	}))
	require.NoError(t, err)
	assert.Equal(t, liveBaseURL, cfg.Mpesa.BaseURL)
}

func TestFromViper_ReportsEveryProblem(t *testing.T) {
	_, err := FromViper(newViper(map[string]any{
		"mpesa_environment": "sandbox",
		"archive_driver":    "s3",
	}))
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "DB_DSN is required")
	assert.Contains(t, msg, "MPESA_CONSUMER_KEY")
	assert.Contains(t, msg, "MPESA_CALLBACK_URL")
	assert.Contains(t, msg, "ARCHIVE_S3_BUCKET")
}

func TestFromViper_RejectsUnknownEnvironment(t *testing.T) {
	_, err := FromViper(newViper(map[string]any{
		"db_dsn":            testDSN,
		"mpesa_environment": "staging",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown MPESA_ENVIRONMENT: "staging"`)
}

func TestLoad_ReadsProcessEnvironment(t *testing.T) {
	t.Setenv("DB_DSN", testDSN)
	t.Setenv("MPESA_ENVIRONMENT", "mock")
	t.Setenv("PAYMENT_INITIATE_TIMEOUT", "3s")
	t.Setenv("ADMIN_TOKEN", "ops-token")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Payment.InitiateTimeout)
	assert.Equal(t, "ops-token", cfg.Admin.Token)
}

func TestFromViper_SMTPAlerts(t *testing.T) {
	cfg, err := FromViper(newViper(map[string]any{
		"db_dsn":            testDSN,
		"mpesa_environment": "mock",
		"smtp_host":         "mail.example",
		"smtp_alert_to":     " ops@shop.example, ,owner@shop.example ",
		"db_max_open_conns": 8,
	}))
	require.NoError(t, err)

	assert.Equal(t, "587", cfg.SMTP.Port)
	assert.Equal(t, "starttls", cfg.SMTP.TLSMode)
	assert.Equal(t, []string{"ops@shop.example", "owner@shop.example"}, cfg.SMTP.AlertTo)
	assert.Equal(t, 8, cfg.DB.MaxOpenConns)

	_, err = FromViper(newViper(map[string]any{
		"db_dsn":            testDSN,
		"mpesa_environment": "mock",
		"smtp_tls_mode":     "ssl3",
	}))
	assert.ErrorContains(t, err, "SMTP_TLS_MODE")
}

func TestFromViper_VerifyPrices(t *testing.T) {
	cfg, err := FromViper(newViper(map[string]any{
		"db_dsn":                       testDSN,
		"mpesa_environment":            "mock",
		"checkout_verify_prices":       "true",
		"checkout_price_tolerance_pct": "2.5",
	}))
	require.NoError(t, err)
	assert.True(t, cfg.Checkout.VerifyPrices)
	assert.InDelta(t, 2.5, cfg.Checkout.PriceTolerancePct, 1e-9)
}
