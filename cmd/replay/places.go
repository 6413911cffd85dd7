package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/jengzang/lorg-backend-go/internal/config"
	"github.com/jengzang/lorg-backend-go/internal/places"
	"github.com/jengzang/lorg-backend-go/internal/repository"
)

var importPlacesCmd = &cobra.Command{
	Use:   "import-places <file.geojson>",
	Short: "Load place boundaries from a GeoJSON FeatureCollection",
	Long: `Load place boundaries into the database. Every feature needs a Polygon or
MultiPolygon geometry and a "name" property; "place_type" and "country_code"
are read when present.`,
	Args: cobra.ExactArgs(1),
	RunE: runImportPlaces,
}

func init() {
	rootCmd.AddCommand(importPlacesCmd)
}

func runImportPlaces(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	boundaries, err := places.ParseFeatureCollection(data)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, config.Load())
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewPlaceRepository(db)
	err = db.Transaction(ctx, func(tx *sql.Tx) error {
		txRepo := repo.WithTx(tx)
		for _, b := range boundaries {
			if _, err := txRepo.InsertBoundary(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[replay] imported %d place boundaries from %s", len(boundaries), args[0])
	return nil
}
