package annotation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jengzang/lorg-backend-go/internal/models"
	"github.com/jengzang/lorg-backend-go/internal/strava"
)

// Status is the outcome of one annotation attempt
type Status string

const (
	StatusApplied     Status = "applied"
	StatusSkipped     Status = "skipped"
	StatusRateLimited Status = "rate_limited"
	StatusError       Status = "error"
	StatusDryRun      Status = "dry_run"
)

// Batch limits
const (
	DefaultLimit = 5
	MaxLimit     = 50
)

// Result describes what happened to one pending activity
type Result struct {
	ActivityID       int64      `json:"activity_id"`
	StravaActivityID int64      `json:"strava_activity_id"`
	Status           Status     `json:"status"`
	Message          string     `json:"message,omitempty"`
	RetryAt          *time.Time `json:"retry_at,omitempty"`
}

// Store persists annotation progress
type Store interface {
	ListPendingAnnotations(ctx context.Context, limit int, activityID int64) ([]models.PendingAnnotation, error)
	MarkAnnotationApplied(ctx context.Context, activityID int64, at time.Time) error
	RecordAnnotationFailure(ctx context.Context, activityID int64) error
}

// DescriptionClient reads and writes activity descriptions on the platform
type DescriptionClient interface {
	GetActivity(ctx context.Context, token string, id int64) (*strava.ActivityDetail, error)
	UpdateDescription(ctx context.Context, token string, id int64, description string) error
}

// RunOptions selects one batch
type RunOptions struct {
	Limit      int   // clamped to [1, MaxLimit]; 0 means DefaultLimit
	ActivityID int64 // restrict to one activity row when non-zero
}

// Dispatcher writes generated annotations back to the platform
type Dispatcher struct {
	store  Store
	client DescriptionClient
	dryRun bool
	now    func() time.Time
}

// NewDispatcher creates a dispatcher. In dry-run mode nothing is sent and
// pending rows are marked applied.
func NewDispatcher(store Store, client DescriptionClient, dryRun bool) *Dispatcher {
	return &Dispatcher{store: store, client: client, dryRun: dryRun, now: time.Now}
}

// ClampLimit normalizes a requested batch size
func ClampLimit(n int) int {
	if n == 0 {
		return DefaultLimit
	}
	if n < 1 {
		return 1
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// Run processes one batch in generated_at order. A rate limit stops the
// batch; its result is the last one returned.
func (d *Dispatcher) Run(ctx context.Context, opts RunOptions) ([]Result, error) {
	pending, err := d.store.ListPendingAnnotations(ctx, ClampLimit(opts.Limit), opts.ActivityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending annotations: %w", err)
	}

	results := make([]Result, 0, len(pending))
	for _, row := range pending {
		res, err := d.process(ctx, row)
		if err != nil {
			return results, err
		}
		results = append(results, res)

		retry := ""
		if res.RetryAt != nil {
			retry = res.RetryAt.UTC().Format(time.RFC3339)
		}
		log.Printf("[Dispatcher] activity=%d strava=%d status=%s message=%q retry_at=%s",
			res.ActivityID, res.StravaActivityID, res.Status, res.Message, retry)

		if res.Status == StatusRateLimited {
			break
		}
	}
	return results, nil
}

// process returns an error only when progress could not be recorded
func (d *Dispatcher) process(ctx context.Context, row models.PendingAnnotation) (Result, error) {
	res := Result{ActivityID: row.ActivityID, StravaActivityID: row.StravaActivityID}

	text := strings.TrimSpace(row.Text)
	if text == "" {
		res.Status, res.Message = StatusSkipped, "empty annotation text"
		return res, d.markApplied(ctx, row.ActivityID)
	}

	if d.dryRun {
		log.Printf("[Dispatcher][dry-run] strava=%d %s", row.StravaActivityID, text)
		res.Status = StatusDryRun
		return res, d.markApplied(ctx, row.ActivityID)
	}

	detail, err := d.client.GetActivity(ctx, row.AccessToken, row.StravaActivityID)
	if err != nil {
		return d.failure(ctx, res, "detail", err)
	}

	existing := ""
	if detail.Description != nil {
		existing = *detail.Description
	}
	description, unchanged := MergeDescription(existing, text)
	if unchanged {
		res.Status, res.Message = StatusSkipped, "annotation already present"
		return res, d.markApplied(ctx, row.ActivityID)
	}

	if err := d.client.UpdateDescription(ctx, row.AccessToken, row.StravaActivityID, description); err != nil {
		return d.failure(ctx, res, "update", err)
	}

	res.Status = StatusApplied
	return res, d.markApplied(ctx, row.ActivityID)
}

func (d *Dispatcher) failure(ctx context.Context, res Result, op string, err error) (Result, error) {
	var rl *strava.RateLimitError
	if errors.As(err, &rl) {
		res.Status = StatusRateLimited
		if !rl.RetryAt.IsZero() {
			at := rl.RetryAt
			res.RetryAt = &at
		}
		return res, nil
	}

	res.Status = StatusError
	var apiErr *strava.APIError
	if errors.As(err, &apiErr) {
		res.Message = apiErr.Error()
	} else {
		res.Message = fmt.Sprintf("%s: %v", op, err)
	}

	if err := d.store.RecordAnnotationFailure(ctx, res.ActivityID); err != nil {
		return res, fmt.Errorf("failed to record annotation failure: %w", err)
	}
	return res, nil
}

func (d *Dispatcher) markApplied(ctx context.Context, activityID int64) error {
	if err := d.store.MarkAnnotationApplied(ctx, activityID, d.now().UTC()); err != nil {
		return fmt.Errorf("failed to mark annotation applied: %w", err)
	}
	return nil
}
