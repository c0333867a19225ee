package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/bootstrap"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/catalogfile"
)

func catalogCmd(g *globals) *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the product catalog the backend would serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			c, err := bootstrap.LoadCatalog(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asYAML {
				return catalogfile.Encode(out, c)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "ID\tNAME\tPRICE (%s)\n", c.Currency())
			for _, p := range c.Products() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.Price.StringFixed(c.Exponent()))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "max quantity per order: %d\n", c.MaxQuantity())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print in catalog file format")
	return cmd
}
