package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jengzang/lorg-backend-go/internal/annotation"
	"github.com/jengzang/lorg-backend-go/internal/config"
	"github.com/jengzang/lorg-backend-go/internal/novelty"
	"github.com/jengzang/lorg-backend-go/internal/repository"
	"github.com/jengzang/lorg-backend-go/internal/service"
	"github.com/jengzang/lorg-backend-go/internal/strava"
)

var (
	runUserID   string
	runLimit    int
	runReport   bool
	runKeep     bool
	runAnnotate bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay fixtures into the database for one user",
	Long: `Replay every fixture activity for a user through the full pipeline
(masking, novelty, places, annotation) in start-date order.

The user's activities, visited cells and visited places are deleted first
unless --keep is given. Without --user a fresh user id is generated.`,
	Args: cobra.NoArgs,
	RunE: runReplay,
}

func init() {
	runCmd.Flags().StringVar(&runUserID, "user", "", "User id to replay for (default: new uuid)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "Replay at most N activities (0 for all)")
	runCmd.Flags().BoolVar(&runReport, "report", false, "Print a JSON report of every outcome")
	runCmd.Flags().BoolVar(&runKeep, "keep", false, "Keep existing progress instead of resetting")
	runCmd.Flags().BoolVar(&runAnnotate, "annotate", false, "Run one annotation batch after the replay")
	rootCmd.AddCommand(runCmd)
}

// replayReport summarizes one replay
type replayReport struct {
	UserID     string                    `json:"user_id"`
	Processed  int                       `json:"processed"`
	Skipped    int                       `json:"skipped"`
	NovelKm    float64                   `json:"novel_km"`
	TotalKm    float64                   `json:"total_km"`
	Cells      int                       `json:"cells"`
	Outcomes   []*service.ProcessOutcome `json:"outcomes,omitempty"`
	Annotation []annotation.Result       `json:"annotation,omitempty"`
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Load()

	dir, err := fixtureDir(cfg)
	if err != nil {
		return err
	}
	userID := runUserID
	if userID == "" {
		userID = uuid.NewString()
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fixtures, err := loadFixtures(ctx, strava.FixtureSource{Dir: dir}, runLimit)
	if err != nil {
		return err
	}

	users := repository.NewUserRepository(db)
	if !runKeep {
		err := db.Transaction(ctx, func(tx *sql.Tx) error {
			return users.WithTx(tx).ResetProgress(ctx, userID)
		})
		if err != nil {
			return err
		}
		log.Printf("[replay] reset progress for %s", userID)
	}

	activities := repository.NewActivityRepository(db)
	client := strava.NewClient(cfg.StravaAPIBase, &http.Client{Timeout: 15 * time.Second})
	dispatcher := annotation.NewDispatcher(activities, client, cfg.AnnotateDryRun)
	svc := service.NewActivityService(db, novelty.NewEngine(cfg.NoveltyParams()), dispatcher)

	report := replayReport{UserID: userID}
	for _, rec := range fixtures {
		out, err := svc.ProcessActivity(ctx, service.RequestFromDetail(userID, service.SourceFixture, rec.Detail, rec.Track))
		if err != nil {
			return err
		}
		if out.Skipped {
			report.Skipped++
		} else {
			report.Processed++
			report.NovelKm += out.NovelMeters / 1000
			report.TotalKm += out.TotalMeters / 1000
		}
		if runReport {
			report.Outcomes = append(report.Outcomes, out)
		}
	}

	if runAnnotate {
		results, err := dispatcher.Run(ctx, annotation.RunOptions{Limit: annotation.MaxLimit})
		if err != nil {
			return err
		}
		report.Annotation = results
	}

	report.Cells, err = repository.NewVisitedCellRepository(db).CountCells(ctx, userID)
	if err != nil {
		return err
	}

	log.Printf("[replay] %s: %d processed, %d skipped, %.1f/%.1f km novel, %d cells",
		userID, report.Processed, report.Skipped, report.NovelKm, report.TotalKm, report.Cells)

	if runReport {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}
