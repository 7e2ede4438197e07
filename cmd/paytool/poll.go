package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/orders"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/poller"
)

func pollCmd() *cobra.Command {
	var (
		baseURL  string
		interval time.Duration
		attempts int
	)

	cmd := &cobra.Command{
		Use:   "poll <order-id>",
		Short: "Wait for an order's payment the way the storefront does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			p := poller.Poller{
				Fetcher:     poller.HTTPFetcher{BaseURL: baseURL},
				Interval:    interval,
				MaxAttempts: attempts,
				OnAttempt: func(n int, st orders.StatusView, err error) {
					if err != nil {
						fmt.Fprintf(out, "#%d error: %v\n", n, err)
						return
					}
					fmt.Fprintf(out, "#%d payment=%s order=%s\n", n, st.PaymentStatus, st.OrderStatus)
				},
			}

			res, err := p.Wait(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "outcome: %s after %d attempts\n", res.Outcome, res.Attempts)
			if res.Outcome == poller.OutcomeTimedOut {
				fmt.Fprintln(out, "the order may still be paid later; check again or run `paytool stale`")
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&baseURL, "base-url", "http://localhost:8080", "API base URL")
	f.DurationVar(&interval, "interval", poller.DefaultInterval, "delay before each poll")
	f.IntVar(&attempts, "attempts", poller.DefaultMaxAttempts, "polls before giving up")
	return cmd
}
