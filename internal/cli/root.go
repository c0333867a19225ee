// Package cli is the kiosk command line: serve the backend, migrate the SQL
// store, inspect the catalog and simulate a gateway payment.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/config"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

type globals struct {
	configDir string
	env       string
}

func (g *globals) load() (config.Config, error) {
	cfg, err := config.Load(g.configDir, g.env)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// NewRootCmd assembles the kiosk command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:           "kiosk",
		Short:         "Perfume kiosk backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	env := os.Getenv(config.EnvPrefix + "ENV")
	if env == "" {
		env = "dev"
	}
	rootCmd.PersistentFlags().StringVar(&g.configDir, "config-dir", "configs", "directory holding base.yaml and <env>.yaml")
	rootCmd.PersistentFlags().StringVar(&g.env, "env", env, "environment overlay to load")

	rootCmd.AddCommand(serveCmd(g))
	rootCmd.AddCommand(migrateCmd(g))
	rootCmd.AddCommand(catalogCmd(g))
	rootCmd.AddCommand(payCmd(g))

	return rootCmd
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}
