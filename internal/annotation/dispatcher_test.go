package annotation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/lorg-backend-go/internal/models"
	"github.com/jengzang/lorg-backend-go/internal/strava"
)

type fakeStore struct {
	pending   []models.PendingAnnotation
	applied   map[int64]time.Time
	failures  map[int64]int
	lastLimit int
}

func newFakeStore(rows ...models.PendingAnnotation) *fakeStore {
	return &fakeStore{pending: rows, applied: map[int64]time.Time{}, failures: map[int64]int{}}
}

func (s *fakeStore) ListPendingAnnotations(_ context.Context, limit int, activityID int64) ([]models.PendingAnnotation, error) {
	s.lastLimit = limit
	var out []models.PendingAnnotation
	for _, p := range s.pending {
		if activityID != 0 && p.ActivityID != activityID {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) MarkAnnotationApplied(_ context.Context, id int64, at time.Time) error {
	s.applied[id] = at
	return nil
}

func (s *fakeStore) RecordAnnotationFailure(_ context.Context, id int64) error {
	s.failures[id]++
	return nil
}

type fakeClient struct {
	descriptions map[int64]string
	getErr       map[int64]error
	putErr       map[int64]error
	updates      map[int64]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		descriptions: map[int64]string{},
		getErr:       map[int64]error{},
		putErr:       map[int64]error{},
		updates:      map[int64]string{},
	}
}

func (c *fakeClient) GetActivity(_ context.Context, _ string, id int64) (*strava.ActivityDetail, error) {
	if err := c.getErr[id]; err != nil {
		return nil, err
	}
	d := &strava.ActivityDetail{ID: id}
	if desc, ok := c.descriptions[id]; ok {
		d.Description = &desc
	}
	return d, nil
}

func (c *fakeClient) UpdateDescription(_ context.Context, _ string, id int64, description string) error {
	if err := c.putErr[id]; err != nil {
		return err
	}
	c.updates[id] = description
	return nil
}

func pending(id int64, text string) models.PendingAnnotation {
	return models.PendingAnnotation{ActivityID: id, StravaActivityID: id * 100, Text: text, AccessToken: "tok"}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, 1, ClampLimit(-4))
	assert.Equal(t, 7, ClampLimit(7))
	assert.Equal(t, MaxLimit, ClampLimit(500))
}

func TestDispatcher_Statuses(t *testing.T) {
	text := "🗺️ Explored 1.0 new miles in Lorg"
	store := newFakeStore(
		pending(1, "   "),
		pending(2, text),
		pending(3, text),
		pending(4, text),
	)
	client := newFakeClient()
	client.descriptions[200] = "Morning loop"
	client.descriptions[300] = "Morning loop\n\n" + text
	client.putErr[400] = &strava.APIError{Op: "update", Status: 500, Body: "oops"}

	results, err := NewDispatcher(store, client, false).Run(context.Background(), RunOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, StatusSkipped, results[0].Status)
	assert.Equal(t, "empty annotation text", results[0].Message)
	assert.Equal(t, StatusApplied, results[1].Status)
	assert.Equal(t, "Morning loop\n\n"+text, client.updates[200])
	assert.Equal(t, StatusSkipped, results[2].Status)
	assert.Equal(t, "annotation already present", results[2].Message)
	assert.Equal(t, StatusError, results[3].Status)
	assert.Contains(t, results[3].Message, "update 500")

	assert.Contains(t, store.applied, int64(1))
	assert.Contains(t, store.applied, int64(2))
	assert.Contains(t, store.applied, int64(3))
	assert.NotContains(t, store.applied, int64(4))
	assert.Equal(t, 1, store.failures[4])
	assert.Equal(t, 10, store.lastLimit)
}

func TestDispatcher_RateLimitStopsBatch(t *testing.T) {
	text := "🗺️ Explored 1.0 new miles in Lorg"
	store := newFakeStore(pending(1, text), pending(2, text), pending(3, text))
	client := newFakeClient()
	reset := time.Unix(1700000900, 0)
	client.getErr[200] = &strava.RateLimitError{RetryAt: reset}

	results, err := NewDispatcher(store, client, false).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, StatusApplied, results[0].Status)
	assert.Equal(t, StatusRateLimited, results[1].Status)
	require.NotNil(t, results[1].RetryAt)
	assert.Equal(t, reset, *results[1].RetryAt)

	assert.NotContains(t, store.applied, int64(2))
	assert.Zero(t, store.failures[2])
	assert.Equal(t, DefaultLimit, store.lastLimit)
}

func TestDispatcher_DryRun(t *testing.T) {
	store := newFakeStore(pending(1, "🗺️ Explored 1.0 new miles in Lorg"))
	client := newFakeClient()

	results, err := NewDispatcher(store, client, true).Run(context.Background(), RunOptions{ActivityID: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusDryRun, results[0].Status)
	assert.Contains(t, store.applied, int64(1))
	assert.Empty(t, client.updates)
}

func TestDispatcher_TransportErrorCountsAsFailure(t *testing.T) {
	store := newFakeStore(pending(1, "🗺️ Explored 1.0 new miles in Lorg"))
	client := newFakeClient()
	client.getErr[100] = errors.New("dial tcp: connection refused")

	results, err := NewDispatcher(store, client, false).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusError, results[0].Status)
	assert.Contains(t, results[0].Message, "detail: dial tcp")
	assert.Equal(t, 1, store.failures[1])
}
