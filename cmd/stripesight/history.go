package main

import (
	"fmt"
	"github.com/spf13/cobra"
	"os"
	"text/tabwriter"
	"time"
)

func newHistoryCmd(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List investigations launched from this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			investigations, err := app.store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(investigations) == 0 {
				fmt.Println("no investigations recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tLAUNCHED\tSTATUS\tMATCHES\tLOCATION")
			for _, inv := range investigations {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					inv.ID,
					inv.LaunchedAt.Format(time.DateTime),
					inv.Status,
					inv.MatchesFound,
					inv.Location,
				)
			}
			return w.Flush()
		},
	}
}
