package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/walkthrough/internal/scenario"
	"github.com/xkilldash9x/walkthrough/internal/scenarios"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check scenario files without opening a browser",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			vars := scenarios.ParamsFromConfig(cfg.Target, "validate", time.Now()).Vars()

			out := cmd.OutOrStdout()
			for _, path := range args {
				loaded, err := scenario.LoadFile(path, vars)
				if err != nil {
					return err
				}
				for _, sc := range loaded {
					fmt.Fprintf(out, "%s: %s ok (%d steps)\n", path, sc.Name, len(sc.Steps))
				}
			}
			return nil
		},
	}
}
