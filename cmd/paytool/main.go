// Command paytool is the operator toolbox for the payment flow: it migrates
// the schema, simulates Daraja callbacks, polls an order like the storefront
// does, lists payments that never settled and repairs lost handoffs.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/config"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/infra/mysql"
)

var v = viper.New()

func main() {
	_ = godotenv.Load()
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "paytool",
		Short:         "Order payment operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("dsn", "", "MySQL DSN (default $DB_DSN)")
	_ = v.BindPFlag("db_dsn", root.PersistentFlags().Lookup("dsn"))

	root.AddCommand(migrateCmd())
	root.AddCommand(callbackCmd())
	root.AddCommand(pollCmd())
	root.AddCommand(staleCmd())
	root.AddCommand(replayCmd())
	root.AddCommand(attachCmd())
	root.AddCommand(catalogCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openDB() (*gorm.DB, error) {
	dsn := v.GetString("db_dsn")
	if dsn == "" {
		return nil, fmt.Errorf("no database: pass --dsn or set DB_DSN")
	}
	return mysql.Open(config.DBConfig{DSN: dsn, MaxOpenConns: 4})
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
