package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// operationInfo describes one registered operation.
type operationInfo struct {
	ID        string `json:"id"`
	Signature string `json:"signature"`
}

func newOperationsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List registered operations",
		Long: `List the operations the engine serves, with the request, command, result
and response types each one is bound to.`,
		Example: `  # List operations
  layerkit operations

  # List operations as JSON
  layerkit operations --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(opts.settingsPath)
			if err != nil {
				return fmt.Errorf("failed to load settings: %w", err)
			}

			ctx := cmd.Context()
			app, err := newApplication(ctx, settings)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			var infos []operationInfo
			for _, id := range app.engine.Operations() {
				spec, _ := app.engine.Operation(id)
				infos = append(infos, operationInfo{ID: id.String(), Signature: spec.Signature().String()})
			}

			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), infos)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "OPERATION\tSIGNATURE")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\n", info.ID, info.Signature)
			}
			return tw.Flush()
		},
	}
}
