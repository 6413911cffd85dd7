package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/lorg-backend-go/internal/strava"
)

// loadWorkers bounds concurrent fixture reads
const loadWorkers = 8

// recorded is one fixture activity with its track, if any
type recorded struct {
	Detail *strava.ActivityDetail
	Track  orb.Geometry
}

// loadFixtures reads every summarized activity in start-date order. Files
// are read concurrently; the returned slice keeps the summary order.
func loadFixtures(ctx context.Context, source strava.FixtureSource, limit int) ([]recorded, error) {
	summaries, err := source.Summaries()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}

	out := make([]recorded, len(summaries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(loadWorkers)
	for i, s := range summaries {
		i, s := i, s
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			detail, err := source.Detail(s.ID)
			if err != nil {
				return err
			}
			track, err := source.Track(s.ID)
			if err != nil && !errors.Is(err, strava.ErrNoTrack) {
				return fmt.Errorf("fixture %d: %w", s.ID, err)
			}
			rec := recorded{Detail: detail}
			if len(track) > 0 {
				rec.Track = track
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
