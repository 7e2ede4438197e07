package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// HTTPConfig is the public listener.
type HTTPConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DBConfig is the MySQL order store.
type DBConfig struct {
	DSN          string
	MaxOpenConns int
	AutoMigrate  bool
}

// MpesaConfig holds the Daraja STK push credentials.
type MpesaConfig struct {
	Environment      string // sandbox|live|mock
	BaseURL          string
	ConsumerKey      string
	ConsumerSecret   string
	Shortcode        string
	Passkey          string
	CallbackURL      string
	CallbackSecret   string // optional HMAC secret for X-Callback-Signature
	AccountReference string
	TransactionDesc  string
}

// PaymentConfig bounds the blocking provider calls made during checkout.
type PaymentConfig struct {
	InitiateTimeout time.Duration
	TokenSkew       time.Duration
}

type CheckoutConfig struct {
	Currency string
	// VerifyPrices checks each line against catalog_products; the catalog
	// must be seeded (paytool catalog set) before it is enabled.
	VerifyPrices      bool
	PriceTolerancePct float64
}

type RedisConfig struct {
	Addr     string
	PoolSize int
}

type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// ArchiveConfig selects where raw callback bodies are kept ("" disables).
type ArchiveConfig struct {
	Driver   string // ""|local|s3
	LocalDir string
	S3Region string
	S3Bucket string
	S3Prefix string
}

// SMTPConfig is the optional mail channel for operator alerts. Alerts are
// mailed only when Host and AlertTo are set.
type SMTPConfig struct {
	Host          string
	Port          string
	User          string
	Pass          string
	TLSMode       string // none|tls|starttls
	SkipVerifyTLS bool
	From          string
	AlertTo       []string
}

type AdminConfig struct {
	Token string
}

// Config is the whole application configuration.
type Config struct {
	HTTP     HTTPConfig
	DB       DBConfig
	Mpesa    MpesaConfig
	Payment  PaymentConfig
	Checkout CheckoutConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	Archive  ArchiveConfig
	SMTP     SMTPConfig
	Admin    AdminConfig
}

const (
	sandboxBaseURL = "https://sandbox.safaricom.co.ke"
	liveBaseURL    = "https://api.safaricom.co.ke"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("http_read_timeout", "10s")
	v.SetDefault("http_write_timeout", "30s")

	v.SetDefault("db_max_open_conns", 20)
	v.SetDefault("db_auto_migrate", false)

	v.SetDefault("mpesa_environment", "sandbox")
	v.SetDefault("mpesa_account_reference", "ButcherSauce")
	v.SetDefault("mpesa_transaction_desc", "Payment for Order")

	v.SetDefault("payment_initiate_timeout", "8s")
	v.SetDefault("payment_token_skew", "60s")

	v.SetDefault("checkout_currency", "KES")
	v.SetDefault("checkout_verify_prices", false)
	v.SetDefault("checkout_price_tolerance_pct", 0.0)

	v.SetDefault("redis_pool_size", 10)

	v.SetDefault("amqp_exchange", "payments.alerts")
	v.SetDefault("amqp_routing_key", "order.payment")

	v.SetDefault("smtp_port", "587")
	v.SetDefault("smtp_tls_mode", "starttls")
	v.SetDefault("smtp_from", "payments@localhost")

	v.SetDefault("archive_local_dir", "./storage/callbacks")
	v.SetDefault("archive_s3_prefix", "mpesa/callbacks")
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// .env is optional; production injects real env vars.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return FromViper(v)
}

// FromViper builds and validates a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:         v.GetString("http_addr"),
			ReadTimeout:  v.GetDuration("http_read_timeout"),
			WriteTimeout: v.GetDuration("http_write_timeout"),
		},
		DB: DBConfig{
			DSN:          v.GetString("db_dsn"),
			MaxOpenConns: v.GetInt("db_max_open_conns"),
			AutoMigrate:  v.GetBool("db_auto_migrate"),
		},
		Mpesa: MpesaConfig{
			Environment:      strings.ToLower(strings.TrimSpace(v.GetString("mpesa_environment"))),
			BaseURL:          v.GetString("mpesa_base_url"),
			ConsumerKey:      v.GetString("mpesa_consumer_key"),
			ConsumerSecret:   v.GetString("mpesa_consumer_secret"),
			Shortcode:        v.GetString("mpesa_shortcode"),
			Passkey:          v.GetString("mpesa_passkey"),
			CallbackURL:      v.GetString("mpesa_callback_url"),
			CallbackSecret:   v.GetString("mpesa_callback_secret"),
			AccountReference: v.GetString("mpesa_account_reference"),
			TransactionDesc:  v.GetString("mpesa_transaction_desc"),
		},
		Payment: PaymentConfig{
			InitiateTimeout: v.GetDuration("payment_initiate_timeout"),
			TokenSkew:       v.GetDuration("payment_token_skew"),
		},
		Checkout: CheckoutConfig{
			Currency:          strings.ToUpper(v.GetString("checkout_currency")),
			VerifyPrices:      v.GetBool("checkout_verify_prices"),
			PriceTolerancePct: v.GetFloat64("checkout_price_tolerance_pct"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			PoolSize: v.GetInt("redis_pool_size"),
		},
		AMQP: AMQPConfig{
			URL:        v.GetString("amqp_url"),
			Exchange:   v.GetString("amqp_exchange"),
			RoutingKey: v.GetString("amqp_routing_key"),
		},
		Archive: ArchiveConfig{
			Driver:   strings.ToLower(v.GetString("archive_driver")),
			LocalDir: v.GetString("archive_local_dir"),
			S3Region: v.GetString("archive_s3_region"),
			S3Bucket: v.GetString("archive_s3_bucket"),
			S3Prefix: v.GetString("archive_s3_prefix"),
		},
		SMTP: SMTPConfig{
			Host:          v.GetString("smtp_host"),
			Port:          v.GetString("smtp_port"),
			User:          v.GetString("smtp_user"),
			Pass:          v.GetString("smtp_pass"),
			TLSMode:       strings.ToLower(v.GetString("smtp_tls_mode")),
			SkipVerifyTLS: v.GetBool("smtp_skip_verify_tls"),
			From:          v.GetString("smtp_from"),
			AlertTo:       splitList(v.GetString("smtp_alert_to")),
		},
		Admin: AdminConfig{Token: v.GetString("admin_token")},
	}

	if cfg.Mpesa.BaseURL == "" {
		cfg.Mpesa.BaseURL = sandboxBaseURL
		if cfg.Mpesa.Environment == "live" {
			cfg.Mpesa.BaseURL = liveBaseURL
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.DB.DSN == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	} else if _, err := mysql.ParseDSN(c.DB.DSN); err != nil {
		errs = append(errs, fmt.Errorf("DB_DSN: %w", err))
	}

	switch c.Mpesa.Environment {
	case "mock":
	case "sandbox", "live":
		var missing []string
		for name, val := range map[string]string{
			"MPESA_CONSUMER_KEY":    c.Mpesa.ConsumerKey,
			"MPESA_CONSUMER_SECRET": c.Mpesa.ConsumerSecret,
			"MPESA_SHORTCODE":       c.Mpesa.Shortcode,
			"MPESA_PASSKEY":         c.Mpesa.Passkey,
			"MPESA_CALLBACK_URL":    c.Mpesa.CallbackURL,
		} {
			if val == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			errs = append(errs, fmt.Errorf("missing M-Pesa settings: %s", strings.Join(missing, ", ")))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MPESA_ENVIRONMENT: %q", c.Mpesa.Environment))
	}

	if c.Payment.InitiateTimeout <= 0 {
		errs = append(errs, errors.New("PAYMENT_INITIATE_TIMEOUT must be positive"))
	}
	if c.Checkout.PriceTolerancePct < 0 {
		errs = append(errs, errors.New("CHECKOUT_PRICE_TOLERANCE_PCT must not be negative"))
	}

	switch c.Archive.Driver {
	case "", "none", "local":
	case "s3":
		if c.Archive.S3Region == "" || c.Archive.S3Bucket == "" {
			errs = append(errs, errors.New("ARCHIVE_S3_REGION and ARCHIVE_S3_BUCKET are required for the s3 archive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ARCHIVE_DRIVER: %q", c.Archive.Driver))
	}

	switch c.SMTP.TLSMode {
	case "", "none", "tls", "starttls":
	default:
		errs = append(errs, fmt.Errorf("unknown SMTP_TLS_MODE: %q", c.SMTP.TLSMode))
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
