package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/config"
	apphttp "github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/http"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/infra/mq"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/infra/mysql"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/infra/redis"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/mailer"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/checkout"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/orders"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/payments"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/products"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/notify"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := mysql.Open(cfg.DB)
	if err != nil {
		return err
	}
	if cfg.DB.AutoMigrate {
		if err := mysql.Migrate(db); err != nil {
			return err
		}
	}

	// Alerts go to the log and, when configured, to RabbitMQ and ops mail. Delivery is
	// asynchronous so a slow broker never holds a checkout.
	sinks := notify.Multi{notify.LogSink{Logger: logger}}
	conn, err := mq.Dial(cfg.AMQP)
	if err != nil {
		return err
	}
	if conn != nil {
		defer conn.Close()
		sinks = append(sinks, notify.NewAMQPSink(conn, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey))
	}
	if cfg.SMTP.Host != "" && len(cfg.SMTP.AlertTo) > 0 {
		sinks = append(sinks, notify.MailSink{
			Mailer: mailer.NewSMTPMailer(cfg.SMTP),
			From:   cfg.SMTP.From,
			To:     cfg.SMTP.AlertTo,
		})
	}
	alerts := notify.Async{Sink: sinks, Logger: logger}

	archive, err := storage.FromConfig(ctx, cfg.Archive)
	if err != nil {
		return err
	}
	logger.Info("callback archive", "driver", archive.Driver)

	initiator, err := newInitiator(cfg, logger)
	if err != nil {
		return err
	}

	callbacks := payments.NewCallbackService(db, alerts, archive.Storage)
	callbacks.SetLogger(logger)

	repo := orders.NewRepo(db)
	intake := checkout.NewIntakeService(repo, initiator, alerts, checkout.Options{
		Currency:          cfg.Checkout.Currency,
		InitiateTimeout:   cfg.Payment.InitiateTimeout,
		PriceTolerancePct: cfg.Checkout.PriceTolerancePct,
	})
	intake.SetLogger(logger)
	intake.SetReplayer(callbacks)
	if cfg.Checkout.VerifyPrices {
		intake.SetPricer(products.NewRepo(db))
	}

	r := apphttp.NewRouter(apphttp.Deps{
		Logger:         logger,
		Intake:         intake,
		Callbacks:      callbacks,
		Status:         repo,
		Admin:          orders.NewAdminService(db),
		CallbackSecret: cfg.Mpesa.CallbackSecret,
		AdminToken:     cfg.Admin.Token,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "mpesa_env", cfg.Mpesa.Environment)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newInitiator(cfg *config.Config, logger *slog.Logger) (payments.Initiator, error) {
	if cfg.Mpesa.Environment == "mock" {
		logger.Warn("M-Pesa is mocked; simulate callbacks with paytool")
		return &payments.MockInitiator{}, nil
	}

	client := payments.NewMpesaClient(payments.MpesaConfig{
		BaseURL:          cfg.Mpesa.BaseURL,
		ConsumerKey:      cfg.Mpesa.ConsumerKey,
		ConsumerSecret:   cfg.Mpesa.ConsumerSecret,
		Shortcode:        cfg.Mpesa.Shortcode,
		Passkey:          cfg.Mpesa.Passkey,
		CallbackURL:      cfg.Mpesa.CallbackURL,
		AccountReference: cfg.Mpesa.AccountReference,
		TransactionDesc:  cfg.Mpesa.TransactionDesc,
		TokenSkew:        cfg.Payment.TokenSkew,
	}, nil)
	client.SetLogger(logger)

	rc, err := redis.Open(cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		// share one OAuth token across instances
		client.Tokens().WithCache(payments.NewRedisTokenCache(rc, ""))
	}
	return client, nil
}
