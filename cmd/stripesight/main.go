package main

import (
	"fmt"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/stripesight/stripesight/internal/apiclient"
	"github.com/stripesight/stripesight/internal/db"
	"github.com/stripesight/stripesight/internal/envstruct"
	"github.com/stripesight/stripesight/internal/errors"
	"github.com/stripesight/stripesight/internal/history"
	"github.com/stripesight/stripesight/internal/logging"
	"log/slog"
	"os"
	"time"
)

type config struct {
	APIBaseURL   string        `env:"STRIPESIGHT_API_URL" envDefault:"http://localhost:8080"`
	WSBaseURL    string        `env:"STRIPESIGHT_WS_URL" envDefault:"ws://localhost:8080"`
	PollInterval time.Duration `env:"STRIPESIGHT_POLL_INTERVAL" envDefault:"2s"`
	DatabaseURL  string        `env:"STRIPESIGHT_DB_URL" envDefault:"./stripesight.sqlite"`
}

type application struct {
	logger *slog.Logger
	cfg    config
	api    *apiclient.Client
	store  *history.Store
}

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "load .env")
	}

	var cfg config
	if err := envstruct.Populate(&cfg, os.LookupEnv); err != nil {
		return errors.Wrap(err, "read configuration")
	}

	logLevel := &slog.LevelVar{}
	logLevel.Set(slog.LevelWarn)
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	database, err := db.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "open local database", slog.String("url", cfg.DatabaseURL))
	}

	app := &application{
		logger: logger,
		cfg:    cfg,
		api:    apiclient.New(cfg.APIBaseURL, logger),
		store:  history.NewStore(database, logger),
	}

	var verbose bool
	rootCmd := &cobra.Command{
		Use:  "stripesight",
		Long: `Track tiger re-identification investigations from the command line.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose {
				logLevel.Set(slog.LevelDebug)
			}
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(
		newLaunchCmd(app),
		newWatchCmd(app),
		newRegenerateCmd(app),
		newHistoryCmd(app),
	)

	return rootCmd.Execute()
}
