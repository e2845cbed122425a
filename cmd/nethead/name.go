package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nethead/internal/domain"
)

func newNameCmd() *cobra.Command {
	var neighbor bool

	cmd := &cobra.Command{
		Use:   "name ADDRESS...",
		Short: "Print the canonical host name for mote addresses",
		Example: `  nethead name 2001:db8::212
  nethead name --neighbor fd00::212:4b00:615:a3f1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, address := range args {
				if neighbor {
					fmt.Fprintf(out, "%s\t%s\t%s\n", address, domain.CanonicalName(address), domain.ServiceKey(domain.NeighborKey(address)))
					continue
				}
				fmt.Fprintln(out, domain.CanonicalName(address))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&neighbor, "neighbor", "n", false, "also print the service key other motes report this address under")
	return cmd
}
