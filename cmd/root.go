// Package cmd defines and implements the CLI commands for the locbot executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/loc-announcer/internal/app"
	"github.com/JakeFAU/loc-announcer/internal/config"
	"github.com/JakeFAU/loc-announcer/internal/logging"
	"github.com/JakeFAU/loc-announcer/internal/runner"
)

// appKeyType is the key for storing the App slot in the context.
type appKeyType string

const appKey appKeyType = "app"

// appSlot is shared between the command tree and execute so the App is
// closed even when a subcommand fails and cobra skips its post-run hooks.
type appSlot struct {
	app App
}

// App defines the application interface that commands use, so tests can
// inject a fake.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetConfig() config.Config
	GetRunner() runner.Invoker
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "locbot",
		Short: "Announces new and updated COVID-19 locations of interest to a webhook.",
		Long: `locbot polls the Ministry of Health locations-of-interest API, compares
the feed against the state saved by the previous run, and posts new or updated
locations in the configured cities to a Discord-style webhook.`,
		SilenceUsage: true,

		// Runs before every subcommand: load config, build the logger and
		// the application services, and stash them on the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			slot, ok := cmd.Context().Value(appKey).(*appSlot)
			if !ok {
				slot = &appSlot{}
				cmd.SetContext(context.WithValue(cmd.Context(), appKey, slot))
			}
			slot.app = appInstance
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml, /etc/locbot/ or $HOME/.locbot/)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	slot, ok := ctx.Value(appKey).(*appSlot)
	if !ok || slot.app == nil {
		return nil, errors.New("application services not initialized")
	}
	return slot.app, nil
}

// execute runs root and then releases whatever App it built, whether or
// not the command succeeded.
func execute(ctx context.Context, root *cobra.Command) error {
	slot := &appSlot{}
	err := root.ExecuteContext(context.WithValue(ctx, appKey, slot))
	if slot.app != nil {
		slot.app.Close()
		_ = slot.app.GetLogger().Sync()
	}
	return err
}

// Execute is the main entry point.
func Execute() {
	if err := execute(context.Background(), newRootCmd()); err != nil {
		// Config errors happen before the global logger is replaced.
		fmt.Fprintln(os.Stderr, err)
		zap.L().Fatal("Command execution failed", zap.Error(err))
	}
}
