package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/checkout"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/orders"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/payments"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/notify"
)

func attachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <order-id> <checkout-request-id>",
		Short: "Store a lost correlation id on an order and apply its callback",
		Long: `Repairs a lost handoff: an order left in awaiting_initiation although
Daraja accepted the push. The CheckoutRequestID comes from the handoff_lost
alert or the provider portal. Any callback parked for it is applied.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}

			logger := newLogger()
			alerts := notify.LogSink{Logger: logger}
			callbacks := payments.NewCallbackService(db, alerts, nil)
			callbacks.SetLogger(logger)

			intake := checkout.NewIntakeService(orders.NewRepo(db), nil, alerts, checkout.Options{})
			intake.SetLogger(logger)
			intake.SetReplayer(callbacks)

			res, err := intake.ResumeHandoff(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order=%s correlation=%s payment=%s\n", res.OrderID, res.CorrelationID, res.PaymentStatus)
			return nil
		},
	}
}
