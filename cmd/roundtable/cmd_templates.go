package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTemplatesCommand(envFile *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List available discussion modes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings(*envFile)
			if err != nil {
				return err
			}

			catalog, err := loadCatalog(settings)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			templates := catalog.Templates()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(templates)
			}

			for _, t := range templates {
				fmt.Fprintf(out, "%s %s [%s]\n", t.Icon, t.Name, t.ModeID)
				fmt.Fprintf(out, "  %s\n", t.Description)
				names := make([]string, 0, len(t.Agents))
				for _, a := range t.Agents {
					names = append(names, a.Avatar+" "+a.Name)
				}
				fmt.Fprintf(out, "  Agents: %s\n", strings.Join(names, ", "))
				fmt.Fprintf(out, "  Estimated time: %s\n\n", t.EstimatedTime)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}
