package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/products"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/shared/money"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the prices checkout validates against",
	}
	cmd.AddCommand(catalogListCmd(), catalogSetCmd())
	return cmd
}

func catalogListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog products",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			items, err := products.NewRepo(db).List(cmd.Context(), all)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "REF\tNAME\tPRICE\tSTATUS")
			for _, p := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Ref, p.Name, money.Format(p.PriceCents, p.Currency), p.Status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include archived products")
	return cmd
}

func catalogSetCmd() *cobra.Command {
	var (
		name     string
		price    int64
		currency string
		archived bool
	)
	cmd := &cobra.Command{
		Use:   "set [ref]",
		Short: "Create or update a catalog product; ref defaults to a slug of --name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			status := products.StatusActive
			if archived {
				status = products.StatusArchived
			}
			var ref string
			if len(args) == 1 {
				ref = args[0]
			}
			p := products.Product{
				Ref:        ref,
				Name:       name,
				PriceCents: price,
				Currency:   strings.ToUpper(currency),
				Status:     status,
			}
			if err := products.NewRepo(db).Upsert(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", p.Name)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&name, "name", "", "display name")
	f.Int64Var(&price, "price-cents", 0, "unit price in cents")
	f.StringVar(&currency, "currency", "KES", "ISO currency")
	f.BoolVar(&archived, "archived", false, "hide from checkout")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("price-cents")
	return cmd
}
