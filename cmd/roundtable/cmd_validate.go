package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/roundtable/graph"
	"github.com/hupe1980/roundtable/mode"
	"github.com/hupe1980/roundtable/tool"
)

func newValidateCommand(envFile *string) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <modes.yaml>",
		Short: "Validate a modes file",
		Long: `Validate checks a modes YAML file for structural errors and builds the
execution plan of every mode without running anything.

Examples:
  roundtable validate modes.yaml
  roundtable validate modes.yaml --strict-tools`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(*envFile)
			if err != nil {
				return err
			}

			catalog, err := mode.LoadCatalog(args[0])
			if err != nil {
				return fmt.Errorf("✗ validation failed: %w", err)
			}

			registry := tool.NewDefaultRegistry(tool.DefaultsConfig{TavilyAPIKey: settings.TavilyAPIKey})
			out := cmd.OutOrStdout()

			for _, m := range catalog.Modes() {
				plan, err := graph.Build(m, func(o *graph.Options) {
					o.Tools = registry
					o.StrictTools = strict
				})
				if err != nil {
					return fmt.Errorf("✗ validation failed: %w", err)
				}

				fmt.Fprintf(out, "✓ %s (%s)\n", m.ID, m.Name)
				fmt.Fprintf(out, "  Type: %s\n", plan.Kind)
				fmt.Fprintf(out, "  Rounds: %d\n", plan.Rounds)
				fmt.Fprintf(out, "  Agents: %d\n", len(m.Agents))
				fmt.Fprintf(out, "  Messages: %d\n", plan.ExpectedMessages())
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict-tools", false, "treat unknown tool ids as errors")

	return cmd
}
