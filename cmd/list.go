package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/walkthrough/internal/scenarios"
)

func newListCmd() *cobra.Command {
	var verbose bool

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the built-in journeys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			params := scenarios.ParamsFromConfig(cfg.Target, "list", time.Now())

			out := cmd.OutOrStdout()
			for _, name := range scenarios.Names() {
				sc, err := scenarios.Lookup(name, params)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-16s %2d steps  %s\n", sc.Name, len(sc.Steps), sc.Description)
				if !verbose {
					continue
				}
				for i, step := range sc.Steps {
					fmt.Fprintf(out, "    %2d. [%s] %s\n", i, step.Criticality, step.Description())
				}
			}
			return nil
		},
	}
	listCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every step")
	return listCmd
}
