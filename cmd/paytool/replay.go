package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/payments"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/notify"
)

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <checkout-request-id>",
		Short: "Apply parked callbacks for a correlation id",
		Long: `Callbacks that matched no order are stored and parked. Checkout replays
them on its own right after the correlation id is saved; use this command
after a parked callback was left behind. Lost handoffs need paytool attach.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}

			logger := newLogger()
			svc := payments.NewCallbackService(db, notify.LogSink{Logger: logger}, nil)
			svc.SetLogger(logger)

			res, err := svc.Replay(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "outcome=%s order=%s payment=%s\n", res.Outcome, res.OrderID, res.Status)
			return nil
		},
	}
}
