package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/layerkit/layerkit/pkg/config"
	"github.com/layerkit/layerkit/pkg/policy"
)

// validationReport summarizes a valid settings file.
type validationReport struct {
	Path     string   `json:"path"`
	Service  string   `json:"service"`
	Hosts    []string `json:"hosts"`
	Policies []string `json:"policies"`
}

func newValidateCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [settings]",
		Short: "Validate a settings file",
		Long: `Validate a settings file and the policies it references.

This command checks:
  - YAML, JSON or CUE syntax
  - Conformance to the settings schema
  - Host URLs, telemetry options and environment overrides
  - That every referenced Rego policy compiles`,
		Example: `  # Validate a CUE settings file
  layerkit validate layerkit.cue

  # Validate the file given by --settings
  layerkit validate --settings layerkit.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.settingsPath
			if len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("a settings file is required")
			}

			log.Debug().Str("path", path).Msg("Validating settings")

			settings, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("invalid settings %s: %w", path, err)
			}

			report := validationReport{
				Path:     path,
				Service:  settings.Telemetry.ServiceName,
				Hosts:    []string{},
				Policies: []string{},
			}
			for _, h := range settings.Hosts {
				report.Hosts = append(report.Hosts, h.Name)
			}

			if len(settings.Policies.Paths) > 0 {
				pe, err := policy.NewEngine(cmd.Context(), log.Logger, nil)
				if err != nil {
					return fmt.Errorf("failed to create policy engine: %w", err)
				}
				if err := pe.LoadPolicies(cmd.Context(), settings.Policies.Paths); err != nil {
					return fmt.Errorf("invalid policies: %w", err)
				}
				for _, p := range pe.ListPolicies() {
					report.Policies = append(report.Policies, p.Name)
				}
			}

			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Settings %s are valid\n", path)
			fmt.Fprintf(out, "  service:  %s\n", report.Service)
			fmt.Fprintf(out, "  hosts:    %d\n", len(report.Hosts))
			fmt.Fprintf(out, "  policies: %d\n", len(report.Policies))
			return nil
		},
	}

	return cmd
}
