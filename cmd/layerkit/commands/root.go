package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	settingsPath string
	jsonOutput   bool
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "layerkit",
		Short: "layerkit - Typed request execution pipeline",
		Long: `layerkit runs client requests through registered operations.

Every operation converts a client request into a domain command, runs a
handler that may call backend services, and converts the result back into
a client response. Middleware observes each stage and the first failure
ends the call.

Features:
  - Typed operations, converters and backend callers
  - Validation and OPA policy checks on client requests
  - Structured logging, Prometheus metrics and OpenTelemetry traces
  - Settings from YAML, JSON or CUE with LAYERKIT_* overrides`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.settingsPath, "settings", "s", "", "settings file path (yaml, json or cue)")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newRunCommand(opts))
	rootCmd.AddCommand(newOperationsCommand(opts))
	rootCmd.AddCommand(newValidateCommand(opts))

	return rootCmd
}
