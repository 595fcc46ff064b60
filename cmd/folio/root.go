package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/config"
	"github.com/jackzampolin/folio/internal/home"
	"github.com/jackzampolin/folio/internal/library"
	"github.com/jackzampolin/folio/internal/output"
	"github.com/jackzampolin/folio/internal/position"
	"github.com/jackzampolin/folio/internal/provider"
	"github.com/jackzampolin/folio/internal/svcctx"
	"github.com/jackzampolin/folio/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Reading engine for EPUB and PDF documents",
	Long: `Folio is a reading engine for large documents. It paginates books
chapter by chapter instead of all at once, keeping a small working set of
loaded chapters and a rolling buffer of pre-rendered windows so page turns
stay fast in thousand-chapter books.

Reading positions persist per document and survive font-size changes.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.folio/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "folio home directory (default: ~/.folio)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		output.SetFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the process logger honoring --verbose.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// bootstrap wires the core services for a command run and attaches them to
// the command context. The returned cleanup closes the position store.
func bootstrap(ctx context.Context) (context.Context, *svcctx.Services, func(), error) {
	logger := newLogger()

	h, err := home.New(homeDir)
	if err != nil {
		return ctx, nil, nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return ctx, nil, nil, err
	}

	cfgPath := cfgFile
	if cfgPath == "" && h.ConfigExists() {
		cfgPath = h.ConfigPath()
	}
	cm, err := config.NewManager(cfgPath)
	if err != nil {
		return ctx, nil, nil, err
	}

	registry := provider.DefaultRegistry()
	lib, err := library.New(library.Config{
		Home:     h,
		Registry: registry,
		Logger:   logger,
	})
	if err != nil {
		return ctx, nil, nil, err
	}

	store, err := position.Open(h.PositionsPath())
	if err != nil {
		return ctx, nil, nil, err
	}

	svcs := &svcctx.Services{
		ConfigManager: cm,
		Logger:        logger,
		Home:          h,
		Library:       lib,
		Positions:     store,
		Registry:      registry,
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close position store", "error", err)
		}
	}
	return svcctx.WithServices(ctx, svcs), svcs, cleanup, nil
}
