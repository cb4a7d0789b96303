package main

import (
	"fmt"
	"github.com/spf13/cobra"
	"github.com/stripesight/stripesight/internal/apiclient"
	"github.com/stripesight/stripesight/internal/errors"
	"github.com/stripesight/stripesight/internal/history"
	"log/slog"
	"os"
	"path/filepath"
)

func newLaunchCmd(app *application) *cobra.Command {
	var (
		location     string
		sightingDate string
		notes        string
		follow       bool
	)

	cmd := &cobra.Command{
		Use:   "launch <image-file>",
		Short: "Submit a sighting image and start a new investigation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath := args[0]
			file, err := os.Open(imagePath)
			if err != nil {
				return errors.Wrap(err, "open image", slog.String("path", imagePath))
			}
			defer func() {
				if closeErr := file.Close(); closeErr != nil {
					app.logger.Warn("could not close image file", errors.SlogError(closeErr))
				}
			}()

			investigationID, err := app.api.Launch(cmd.Context(), apiclient.LaunchRequest{
				Image:        file,
				Filename:     filepath.Base(imagePath),
				Location:     location,
				SightingDate: sightingDate,
				Notes:        notes,
			})
			if err != nil {
				return err
			}

			// A failed local record must not fail the launch; the backend
			// already accepted the investigation.
			if err = app.store.Record(cmd.Context(), history.Investigation{
				ID:       investigationID,
				Location: location,
				Notes:    notes,
			}); err != nil {
				app.logger.Warn("could not record investigation locally", errors.SlogError(err))
			}

			fmt.Println(investigationID)

			if follow {
				return app.watch(cmd.Context(), investigationID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&location, "location", "", "where the sighting happened")
	cmd.Flags().StringVar(&sightingDate, "date", "", "when the sighting happened")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes about the sighting")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "watch the investigation after launching")
	return cmd
}
