package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jengzang/lorg-backend-go/internal/config"
	"github.com/jengzang/lorg-backend-go/internal/database"
)

var (
	// fixturesFlag overrides STRAVA_FIXTURES
	fixturesFlag string
)

var rootCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay recorded activities through the Lorg novelty pipeline",
	Long: `replay feeds recorded activities (<id>-summary.json, <id>-detail.json and
<id>-streams.json) through the novelty pipeline in start-date order.

Examples:
  replay run --user athlete-1 --report
  replay compare --cell-deg 0.001
  replay import-places boundaries.geojson`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&fixturesFlag, "fixtures", "",
		"Fixture directory (default: STRAVA_FIXTURES)")
}

// fixtureDir resolves the fixture directory from the flag or the config
func fixtureDir(cfg *config.Config) (string, error) {
	if fixturesFlag != "" {
		return fixturesFlag, nil
	}
	if cfg.StravaFixtureDir != "" {
		return cfg.StravaFixtureDir, nil
	}
	return "", fmt.Errorf("no fixture directory: pass --fixtures or set STRAVA_FIXTURES")
}

// openDatabase opens and migrates the configured database
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, err
	}
	if err := database.NewMigrationManager(db).RunMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
