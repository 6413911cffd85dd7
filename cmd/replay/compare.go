package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jengzang/lorg-backend-go/internal/config"
	"github.com/jengzang/lorg-backend-go/internal/novelty"
	"github.com/jengzang/lorg-backend-go/internal/service"
	"github.com/jengzang/lorg-backend-go/internal/strava"
)

var (
	compareCellDeg  float64
	compareRadius   int
	compareSimplify float64
	compareLimit    int
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare novelty under the configured and an alternative grid",
	Long: `Compute the novelty history of the fixtures in memory twice, once with
the configured grid and once with the grid given by the flags, and print the
novel distance of every activity side by side. No database is touched.`,
	Args: cobra.NoArgs,
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().Float64Var(&compareCellDeg, "cell-deg", 0, "Alternative cell size in degrees (0 keeps the configured one)")
	compareCmd.Flags().IntVar(&compareRadius, "radius", -1, "Alternative neighbor radius (-1 keeps the configured one)")
	compareCmd.Flags().Float64Var(&compareSimplify, "simplify", -1, "Alternative simplify tolerance in meters (-1 keeps the configured one)")
	compareCmd.Flags().IntVar(&compareLimit, "limit", 0, "Compare at most N activities (0 for all)")
	rootCmd.AddCommand(compareCmd)
}

// historyRow is one activity of an in-memory replay
type historyRow struct {
	ID      int64
	Skipped string
	Result  novelty.Result
}

// replayInMemory runs the eligible fixtures through one engine and store
func replayInMemory(ctx context.Context, params novelty.Params, fixtures []recorded) ([]historyRow, error) {
	engine := novelty.NewEngine(params)
	store := novelty.NewMemoryStore()

	rows := make([]historyRow, 0, len(fixtures))
	for _, rec := range fixtures {
		req := service.RequestFromDetail("compare", service.SourceFixture, rec.Detail, rec.Track)
		row := historyRow{ID: rec.Detail.ID, Skipped: service.SkipReason(req)}
		if row.Skipped == "" {
			res, err := engine.Run(ctx, store, req.UserID, req.Track)
			if err != nil {
				return nil, fmt.Errorf("activity %d: %w", row.ID, err)
			}
			row.Result = res
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func alternativeParams(base novelty.Params) novelty.Params {
	alt := base
	if compareCellDeg > 0 {
		alt.CellSizeDeg = compareCellDeg
		alt.SnapDeg = 0
	}
	if compareRadius >= 0 {
		alt.NeighborRadius = compareRadius
	}
	if compareSimplify >= 0 {
		alt.SimplifyMeters = compareSimplify
	}
	return alt.Normalize()
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Load()

	dir, err := fixtureDir(cfg)
	if err != nil {
		return err
	}
	fixtures, err := loadFixtures(ctx, strava.FixtureSource{Dir: dir}, compareLimit)
	if err != nil {
		return err
	}

	base := cfg.NoveltyParams()
	alt := alternativeParams(base)

	baseRows, err := replayInMemory(ctx, base, fixtures)
	if err != nil {
		return err
	}
	altRows, err := replayInMemory(ctx, alt, fixtures)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "activity\ttotal m\tnovel m (%g°, r=%d)\tnovel m (%g°, r=%d)\tnote\n",
		base.CellSizeDeg, base.NeighborRadius, alt.CellSizeDeg, alt.NeighborRadius)
	var baseNovel, altNovel float64
	for i, b := range baseRows {
		a := altRows[i]
		if b.Skipped != "" {
			fmt.Fprintf(w, "%d\t-\t-\t-\tskipped: %s\n", b.ID, b.Skipped)
			continue
		}
		baseNovel += b.Result.NovelMeters
		altNovel += a.Result.NovelMeters
		fmt.Fprintf(w, "%d\t%.0f\t%.0f\t%.0f\t\n", b.ID, b.Result.TotalMeters, b.Result.NovelMeters, a.Result.NovelMeters)
	}
	fmt.Fprintf(w, "total\t\t%.0f\t%.0f\t\n", baseNovel, altNovel)
	return w.Flush()
}
