package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/orders"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/shared/money"
)

func staleCmd() *cobra.Command {
	var (
		olderThan time.Duration
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "stale",
		Short: "List M-Pesa orders that never settled",
		Long: `Lists orders still awaiting a callback and orders whose correlation id was
never stored (lost handoffs). Lost handoffs are repaired with paytool attach.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			repo := orders.NewRepo(db)
			params := orders.PendingListParams{OlderThan: olderThan, Limit: limit}

			lost, err := repo.ListAwaitingInitiation(cmd.Context(), params)
			if err != nil {
				return err
			}
			waiting, err := repo.ListAwaitingConfirmation(cmd.Context(), params)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ORDER\tPAYMENT\tCORRELATION\tTOTAL\tPHONE\tAGE")
			for _, o := range append(lost, waiting...) {
				cid := "-"
				if o.PaymentCorrelationID != nil {
					cid = *o.PaymentCorrelationID
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					o.ID, o.PaymentStatus, cid, money.Format(o.TotalCents, o.Currency), o.CustomerPhone,
					time.Since(o.CreatedAt).Truncate(time.Second))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 10*time.Minute, "minimum order age")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum rows per status")
	return cmd
}
