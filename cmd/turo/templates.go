package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/modelpath-dev/TuroAISTT/internal/bootstrap"
	"github.com/modelpath-dev/TuroAISTT/internal/domain"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the report templates offered by the backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := bootstrap.Build(newConsoleSink(os.Stderr), nil, overrides())
		if err != nil {
			return err
		}

		templates, err := services.Pipeline.ListTemplates(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tREGION")
		for _, t := range templates {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Name, domain.TemplatePrefix(t.ID))
		}
		return w.Flush()
	},
}
