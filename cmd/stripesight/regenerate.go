package main

import (
	"fmt"
	"github.com/spf13/cobra"
)

func newRegenerateCmd(app *application) *cobra.Command {
	var audience string

	cmd := &cobra.Command{
		Use:   "regenerate <investigation-id>",
		Short: "Rebuild an investigation's report for a different audience",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			investigationID := args[0]
			if err := app.api.RegenerateReport(cmd.Context(), investigationID, audience); err != nil {
				return err
			}
			// The regenerated report shows up through subsequent poll and push
			// traffic; there is nothing to print yet.
			fmt.Printf("report regeneration requested for %s (audience: %s)\n", investigationID, audience)
			return nil
		},
	}

	cmd.Flags().StringVar(&audience, "audience", "general", "target audience for the report")
	return cmd
}
