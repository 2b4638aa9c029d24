// Package cmd defines the volscraper command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/cme-volume-scraper/internal/app"
	"github.com/JakeFAU/cme-volume-scraper/internal/config"
	"github.com/JakeFAU/cme-volume-scraper/internal/logging"
	"github.com/JakeFAU/cme-volume-scraper/internal/scrape"
)

// Version is stamped at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what subcommands need from the service container. Tests swap in a fake.
type App interface {
	Config() config.Config
	Logger() *zap.Logger
	Service() *scrape.Service
	Close() error
}

// newApp is the application factory; tests replace it.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewWithOptions(logging.Options{
		Development: cfg.Logging.Development,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

// newRootCmd creates the root command and its subcommands. The returned func
// closes whatever application services the command run opened; it runs even
// when the subcommand fails.
func newRootCmd() (*cobra.Command, func() error) {
	var (
		cfgFile     string
		appInstance App
	)
	cmd := &cobra.Command{
		Use:   "volscraper",
		Short: "Scrapes CME gold futures volume totals and serves them over HTTP.",
		Long: `volscraper fetches the CME gold volume page, extracts the totals row,
stores a reading whenever any value changes, and exposes the history through
a small HTTP API.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadDotEnv(); err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			appInstance = a
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.AddCommand(newServeCmd(), newScrapeCmd(), newListCmd())

	closeApp := func() error {
		if appInstance == nil {
			return nil
		}
		a := appInstance
		appInstance = nil
		_ = a.Logger().Sync()
		if err := a.Close(); err != nil {
			return fmt.Errorf("close application services: %w", err)
		}
		return nil
	}
	return cmd, closeApp
}

// loadDotEnv loads .env from the working directory when present.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	cmd, closeApp := newRootCmd()
	err := cmd.ExecuteContext(context.Background())
	if closeErr := closeApp(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
