package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/bootstrap"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/config"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/sqlstore"
)

func migrateCmd(g *globals) *cobra.Command {
	var driver, dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL schema migrations",
		Long: `Apply the embedded schema migrations to the configured SQL store.

Examples:
  kiosk migrate --env prod
  kiosk migrate --driver sqlite3 --dsn "file:kiosk.db?_busy_timeout=5000"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			opts := bootstrap.SQLOptions(cfg)
			if driver != "" {
				opts.Driver = driver
			}
			if dsn != "" {
				opts.DSN = dsn
			}
			if cfg.Store.Driver != config.StoreSQL && dsn == "" {
				return fmt.Errorf("store driver is %q; pass --dsn or set store.driver=sql", cfg.Store.Driver)
			}

			version, err := sqlstore.Migrate(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d (%s)\n", version, opts.Driver)
			return nil
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "", "override sql.driver (mysql, sqlite3)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "override sql.dsn")
	return cmd
}
