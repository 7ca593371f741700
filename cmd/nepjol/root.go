package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/nepjol-importer/internal/app"
	"github.com/JakeFAU/nepjol-importer/internal/config"
	"github.com/JakeFAU/nepjol-importer/internal/logging"
)

type appKeyType struct{}

// newRootCmd wires config loading and application startup into
// PersistentPreRunE so every subcommand receives a ready App.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "nepjol",
		Short: "Import journals and articles from Nepal Journals Online.",
		Long: `nepjol crawls the NepJOL journal index, walks every journal's issue
archive and article pages, and records journals, issues, authors and
publications in the catalog. It runs as a one-shot batch import or as an
HTTP service that starts, stops and reports on background runs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKeyType{}, a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return
			}
			logger := a.Logger()
			if err := a.Close(); err != nil {
				logger.Warn("close application services", zap.Error(err))
			}
			_ = logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); NEPJOL_* environment variables override it")

	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newJournalsCmd())
	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKeyType{}).(*app.App)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}
