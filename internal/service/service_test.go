package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/lorg-backend-go/internal/annotation"
	"github.com/jengzang/lorg-backend-go/internal/database"
	"github.com/jengzang/lorg-backend-go/internal/models"
	"github.com/jengzang/lorg-backend-go/internal/novelty"
	"github.com/jengzang/lorg-backend-go/internal/places"
	"github.com/jengzang/lorg-backend-go/internal/repository"
	"github.com/jengzang/lorg-backend-go/internal/strava"
)

var testClock = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(database.Config{URL: filepath.Join(t.TempDir(), "lorg.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.NewMigrationManager(db).RunMigrations(context.Background()))
	return db
}

func newTestService(t *testing.T, db *database.DB, dispatcher *annotation.Dispatcher) *ActivityService {
	t.Helper()
	svc := NewActivityService(db, novelty.NewEngine(novelty.DefaultParams()), dispatcher)
	svc.now = func() time.Time { return testClock }
	return svc
}

func twoCellRequest(source string) ProcessRequest {
	distance := 1000.0
	return ProcessRequest{
		UserID:                "athlete-1",
		ActivityID:            42,
		SportType:             "Run",
		StartDate:             "2024-05-01T07:00:00Z",
		DistanceMeters:        &distance,
		MeasurementPreference: "meters",
		Source:                source,
		Track:                 orb.LineString{{0, 0}, {0, 0.0004}, {0, 0.0008}},
	}
}

func TestSkipReason(t *testing.T) {
	short := 150.0
	long := 5000.0
	track := orb.LineString{{0, 0}, {0, 1}}

	tests := []struct {
		name string
		req  ProcessRequest
		want string
	}{
		{"eligible run", ProcessRequest{SportType: "Run", DistanceMeters: &long, Track: track}, ""},
		{"unknown distance is fine", ProcessRequest{SportType: "Hike", Track: track}, ""},
		{"virtual ride", ProcessRequest{SportType: "VirtualRide", Track: track}, "virtual activity"},
		{"virtual run", ProcessRequest{SportType: "VirtualRun", Track: track}, "virtual activity"},
		{"swim", ProcessRequest{SportType: "Swim", Track: track}, "sport Swim not allowed"},
		{"trainer", ProcessRequest{SportType: "Ride", Trainer: true, Track: track}, "trainer/indoor"},
		{"manual", ProcessRequest{SportType: "Walk", Manual: true, Track: track}, "manual activity"},
		{"too short", ProcessRequest{SportType: "Run", DistanceMeters: &short, Track: track}, "distance < 200m"},
		{"no track", ProcessRequest{SportType: "Run"}, "no geometry"},
		{"single point", ProcessRequest{SportType: "Run", Track: orb.LineString{{0, 0}}}, "no geometry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SkipReason(tt.req))
		})
	}
}

func TestRequestFromDetail(t *testing.T) {
	distance := 3200.0
	detail := &strava.ActivityDetail{ID: 9, Type: "Ride", StartDate: "2024-01-01T10:00:00Z", Distance: &distance, Trainer: true}
	detail.Athlete.MeasurementPreference = "Feet"

	req := RequestFromDetail("u", SourceFixture, detail, nil)
	assert.Equal(t, int64(9), req.ActivityID)
	assert.Equal(t, "Ride", req.SportType)
	assert.Equal(t, "2024-01-01T10:00:00Z", req.StartDate)
	assert.Equal(t, "feet", req.MeasurementPreference)
	assert.True(t, req.Trainer)
	assert.Equal(t, SourceFixture, req.Source)
}

func TestProcessActivity_NoveltyThenReprocess(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := newTestService(t, db, nil)

	first, err := svc.ProcessActivity(ctx, twoCellRequest(SourceFixture))
	require.NoError(t, err)
	assert.False(t, first.Skipped)
	assert.Equal(t, 12, first.NovelCellCount)
	assert.Greater(t, first.NovelMeters, 0.0)
	assert.InDelta(t, 1.0, first.NovelFraction, 1e-9)
	assert.Equal(t, annotation.BuildMessage(first.NovelMeters, "meters", nil), first.Annotation)
	assert.Contains(t, first.Annotation, "new kilometers")

	activities := repository.NewActivityRepository(db)
	stored, err := activities.GetByStravaID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, SourceFixture, stored.Source)
	assert.InDelta(t, first.NovelMeters, stored.NovelMeters, 1e-9)
	require.NotNil(t, stored.GeomGeoJSON)
	require.NotNil(t, stored.MaskedGeoJSON)
	require.NotNil(t, stored.NovelGeoJSON)
	assert.Contains(t, *stored.NovelGeoJSON, "LineString")
	require.NotNil(t, stored.Annotation.GeneratedAt)
	assert.True(t, testClock.Equal(*stored.Annotation.GeneratedAt))

	n, err := repository.NewVisitedCellRepository(db).CountCells(ctx, "athlete-1")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	second, err := svc.ProcessActivity(ctx, twoCellRequest(SourceFixture))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 0.0, second.NovelMeters)
	assert.Equal(t, 0, second.NovelCellCount)
	assert.InDelta(t, first.TotalMeters, second.TotalMeters, 1e-9)
	assert.Equal(t, "", second.Annotation)

	stored, err = activities.GetByStravaID(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, stored.NovelGeoJSON)
	assert.Nil(t, stored.Annotation.Text)
}

func TestProcessActivity_APISourceComposesNoAnnotation(t *testing.T) {
	db := openTestDB(t)
	out, err := newTestService(t, db, nil).ProcessActivity(context.Background(), twoCellRequest(SourceAPI))
	require.NoError(t, err)
	assert.Greater(t, out.NovelMeters, 0.0)
	assert.Empty(t, out.Annotation)
}

func TestProcessActivity_SkippedActivityIsRecorded(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := newTestService(t, db, nil)

	req := twoCellRequest(SourceFixture)
	req.SportType = "VirtualRide"

	out, err := svc.ProcessActivity(ctx, req)
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.Equal(t, "virtual activity", out.SkipReason)

	stored, err := repository.NewActivityRepository(db).GetByStravaID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stored.TotalMeters)

	n, err := repository.NewVisitedCellRepository(db).CountCells(ctx, "athlete-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestProcessActivity_PrivacyZoneHidesTrack(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := newTestService(t, db, nil)

	require.NoError(t, repository.NewUserRepository(db).EnsureUser(ctx, "athlete-1"))
	_, err := repository.NewPrivacyZoneRepository(db).Insert(ctx, models.PrivacyZone{
		UserID: "athlete-1", CenterLon: 0, CenterLat: 0.0004, RadiusM: 500,
	})
	require.NoError(t, err)

	out, err := svc.ProcessActivity(ctx, twoCellRequest(SourceFixture))
	require.NoError(t, err)
	assert.False(t, out.Skipped)
	assert.Equal(t, 0.0, out.TotalMeters)
	assert.Equal(t, 0, out.NovelCellCount)
	assert.Empty(t, out.Annotation)

	n, err := repository.NewVisitedCellRepository(db).CountCells(ctx, "athlete-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestProcessActivity_UnlocksPlacesOnce(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := newTestService(t, db, nil)

	placeRepo := repository.NewPlaceRepository(db)
	_, err := placeRepo.InsertBoundary(ctx, places.Boundary{
		Name: "Null Island", PlaceType: "city", CountryCode: "US",
		Geometry: orb.Polygon{{{-0.01, -0.01}, {0.01, -0.01}, {0.01, 0.01}, {-0.01, 0.01}, {-0.01, -0.01}}},
	})
	require.NoError(t, err)

	first, err := svc.ProcessActivity(ctx, twoCellRequest(SourceFixture))
	require.NoError(t, err)
	assert.Equal(t, []string{"Null Island"}, first.UnlockedPlaces)
	assert.Contains(t, first.Annotation, "📍 New places: Null Island")

	req := twoCellRequest(SourceFixture)
	req.ActivityID = 43
	second, err := svc.ProcessActivity(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, second.UnlockedPlaces)
}

func TestProcessActivity_WebhookTriggersDispatch(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	activities := repository.NewActivityRepository(db)
	dispatcher := annotation.NewDispatcher(activities, nil, true)
	svc := newTestService(t, db, dispatcher)

	users := repository.NewUserRepository(db)
	require.NoError(t, users.EnsureUser(ctx, "athlete-1"))
	require.NoError(t, users.SaveToken(ctx, models.StravaToken{
		UserID: "athlete-1", AccessToken: "a", RefreshToken: "r", ExpiresAt: testClock.Add(time.Hour),
	}))

	out, err := svc.ProcessActivity(ctx, twoCellRequest(SourceWebhook))
	require.NoError(t, err)
	require.Len(t, out.Dispatch, 1)
	assert.Equal(t, annotation.StatusDryRun, out.Dispatch[0].Status)
	assert.Equal(t, out.ID, out.Dispatch[0].ActivityID)

	pending, err := activities.ListPendingAnnotations(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessActivity_RequiresIdentifiers(t *testing.T) {
	svc := newTestService(t, openTestDB(t), nil)

	_, err := svc.ProcessActivity(context.Background(), ProcessRequest{ActivityID: 1})
	assert.Error(t, err)
	_, err = svc.ProcessActivity(context.Background(), ProcessRequest{UserID: "u"})
	assert.Error(t, err)
}

func TestCellService_VisitedCells(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := newTestService(t, db, nil).ProcessActivity(ctx, twoCellRequest(SourceAPI))
	require.NoError(t, err)

	cells := NewCellService(repository.NewVisitedCellRepository(db), novelty.DefaultCellSizeDeg, 5)
	assert.Equal(t, 5, cells.ClampLimit(0))
	assert.Equal(t, 5, cells.ClampLimit(500))
	assert.Equal(t, 1, cells.ClampLimit(-4))
	assert.Equal(t, 3, cells.ClampLimit(3))

	fc, err := cells.VisitedCells(ctx, "athlete-1", 100)
	require.NoError(t, err)
	require.Len(t, fc.Features, 5)

	first := fc.Features[0]
	assert.Equal(t, int64(-1), first.Properties["cell_x"])
	assert.Equal(t, int64(-1), first.Properties["cell_y"])
	poly, ok := first.Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.InDelta(t, -0.0005, poly.Bound().Min.Lon(), 1e-12)
	assert.InDelta(t, 0.0, poly.Bound().Max.Lat(), 1e-12)

	total, err := cells.CountCells(ctx, "athlete-1")
	require.NoError(t, err)
	assert.Equal(t, 12, total)

	empty, err := cells.VisitedCells(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, empty.Features)
}
