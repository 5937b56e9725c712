package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luxkey/listing-ingest/internal/config"
	"github.com/luxkey/listing-ingest/internal/ingest"
	"github.com/luxkey/listing-ingest/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "listing-ingest",
	Short: "Property listing ingestion pipeline",
	Long:  "Pulls property records from ATTOM and Realtor, normalizes and gates them, and writes catalog listings with per-run telemetry.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		if cfg.Ingest.CityPresetsFile != "" {
			if err := ingest.LoadCityPresets(cfg.Ingest.CityPresetsFile); err != nil {
				return fmt.Errorf("load city presets: %w", err)
			}
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// initStore opens the configured backend and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
