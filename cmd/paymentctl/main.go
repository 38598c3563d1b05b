// Command paymentctl runs operational tasks against the payment database:
// schema migrations, actor tokens and policy seeding.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	databaseURL string
	logLevel    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "paymentctl",
		Short:         "Operational tooling for the QMoney payment service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(migrateCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(policyCmd())
	return root
}
