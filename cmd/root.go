package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cwbudde/evotimetable/internal/config"
	"github.com/cwbudde/evotimetable/internal/store"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	configPath string
	storeKind  string
	dataDir    string

	logger *slog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "evotimetable",
	Short: "Evolutionary timetable search",
	Long: `evotimetable assigns subjects to day/time slots with a genetic algorithm,
scoring candidates with weighted penalty and reward rules. Runs can be
checkpointed, resumed, tuned, or served over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
		}
		if cmd.Flags().Changed("store") {
			loaded.Store.Kind = store.Kind(storeKind)
		}
		if cmd.Flags().Changed("data-dir") {
			loaded.Store.DataDir = dataDir
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		// Setup logger
		var level slog.Level
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{Level: level}
		handler := slog.NewJSONHandler(os.Stdout, opts)
		logger = slog.New(handler)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (EVOTT_* env vars override it)")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", string(store.KindFS), "Checkpoint store (fs, memory, sqlite, badger)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "Base directory for checkpoints and traces")
}

// openStore opens the configured checkpoint store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewStore(ctx, cfg.Store.Kind, cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Kind, err)
	}
	return st, nil
}
