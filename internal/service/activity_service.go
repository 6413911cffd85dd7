package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jengzang/lorg-backend-go/internal/annotation"
	"github.com/jengzang/lorg-backend-go/internal/database"
	"github.com/jengzang/lorg-backend-go/internal/masking"
	"github.com/jengzang/lorg-backend-go/internal/novelty"
	"github.com/jengzang/lorg-backend-go/internal/places"
	"github.com/jengzang/lorg-backend-go/internal/repository"
	"github.com/jengzang/lorg-backend-go/internal/spatial"
	"github.com/jengzang/lorg-backend-go/internal/strava"
)

// Activity sources
const (
	SourceWebhook = "webhook"
	SourceFixture = "fixture"
	SourceAPI     = "api"
)

// minDistanceMeters is the shortest activity worth processing
const minDistanceMeters = 200

// allowedSports are the outdoor sports that can unlock ground
var allowedSports = map[string]bool{
	"Run":               true,
	"TrailRun":          true,
	"Walk":              true,
	"Hike":              true,
	"Ride":              true,
	"GravelRide":        true,
	"MountainBikeRide":  true,
	"EBikeRide":         true,
	"EMountainBikeRide": true,
}

// ProcessRequest is one activity to run through the pipeline
type ProcessRequest struct {
	UserID                string
	ActivityID            int64 // platform activity id
	SportType             string
	StartDate             string
	Trainer               bool
	Manual                bool
	DistanceMeters        *float64
	MeasurementPreference string // "meters" or "feet"; empty keeps the stored value
	Source                string
	Track                 orb.Geometry
}

// ProcessOutcome reports what processing did
type ProcessOutcome struct {
	ID               int64               `json:"id,omitempty"`
	StravaActivityID int64               `json:"strava_activity_id"`
	Skipped          bool                `json:"skipped"`
	SkipReason       string              `json:"skip_reason,omitempty"`
	TotalMeters      float64             `json:"total_meters"`
	NovelMeters      float64             `json:"novel_meters"`
	NovelFraction    float64             `json:"novel_fraction"`
	NovelCellCount   int                 `json:"novel_cell_count"`
	UnlockedPlaces   []string            `json:"unlocked_places,omitempty"`
	Annotation       string              `json:"annotation,omitempty"`
	Dispatch         []annotation.Result `json:"dispatch,omitempty"`
}

// RequestFromDetail builds a request from a platform activity payload
func RequestFromDetail(userID, source string, detail *strava.ActivityDetail, track orb.Geometry) ProcessRequest {
	return ProcessRequest{
		UserID:                userID,
		ActivityID:            detail.ID,
		SportType:             detail.Sport(),
		StartDate:             detail.Start(),
		Trainer:               detail.Trainer,
		Manual:                detail.Manual,
		DistanceMeters:        detail.Distance,
		MeasurementPreference: detail.MeasurementPreference(),
		Source:                source,
		Track:                 track,
	}
}

// SkipReason returns why an activity is not processed, "" when it is eligible
func SkipReason(req ProcessRequest) string {
	sport := req.SportType
	if strings.Contains(strings.ToLower(sport), "virtual") {
		return "virtual activity"
	}
	if !allowedSports[sport] {
		return fmt.Sprintf("sport %s not allowed", sport)
	}
	if req.Trainer {
		return "trainer/indoor"
	}
	if req.Manual {
		return "manual activity"
	}
	if req.DistanceMeters != nil && *req.DistanceMeters < minDistanceMeters {
		return "distance < 200m"
	}
	if !hasLine(req.Track) {
		return "no geometry"
	}
	return ""
}

func hasLine(geom orb.Geometry) bool {
	for _, ls := range spatial.Lines(geom) {
		if len(ls) >= 2 {
			return true
		}
	}
	return false
}

// ActivityService runs activities through masking, novelty, place matching
// and annotation
type ActivityService struct {
	db         *database.DB
	engine     *novelty.Engine
	masker     masking.Masker
	users      *repository.UserRepository
	activities *repository.ActivityRepository
	cells      *repository.VisitedCellRepository
	zones      *repository.PrivacyZoneRepository
	places     *repository.PlaceRepository
	countries  []string
	dispatcher *annotation.Dispatcher
	now        func() time.Time
}

// NewActivityService creates a new activity service. The engine carries the
// parameter snapshot every activity is processed with.
func NewActivityService(db *database.DB, engine *novelty.Engine, dispatcher *annotation.Dispatcher) *ActivityService {
	return &ActivityService{
		db:         db,
		engine:     engine,
		masker:     masking.ZoneMasker{},
		users:      repository.NewUserRepository(db),
		activities: repository.NewActivityRepository(db),
		cells:      repository.NewVisitedCellRepository(db),
		zones:      repository.NewPrivacyZoneRepository(db),
		places:     repository.NewPlaceRepository(db),
		countries:  places.DefaultCountries,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// ProcessActivity runs one activity. Everything it writes, visited cells
// included, commits or rolls back together.
func (s *ActivityService) ProcessActivity(ctx context.Context, req ProcessRequest) (*ProcessOutcome, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if req.ActivityID == 0 {
		return nil, fmt.Errorf("activity id is required")
	}
	if req.Source == "" {
		req.Source = SourceAPI
	}

	rec := repository.ActivityRecord{
		UserID:           req.UserID,
		StravaActivityID: req.ActivityID,
		SportType:        req.SportType,
		StartDate:        req.StartDate,
		Source:           req.Source,
		ProcessedAt:      s.now(),
	}

	if reason := SkipReason(req); reason != "" {
		log.Printf("[ActivityService] skip activity %d: %s", req.ActivityID, reason)
		err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
			if err := s.users.WithTx(tx).EnsureUser(ctx, req.UserID); err != nil {
				return err
			}
			return s.activities.WithTx(tx).InsertSkipped(ctx, rec)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record skipped activity %d: %w", req.ActivityID, err)
		}
		return &ProcessOutcome{StravaActivityID: req.ActivityID, Skipped: true, SkipReason: reason}, nil
	}

	geomJSON, err := marshalGeometry(req.Track)
	if err != nil {
		return nil, err
	}
	rec.GeomGeoJSON = geomJSON

	var out *ProcessOutcome
	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		o, err := s.processTx(ctx, tx, req, rec)
		out = o
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process activity %d: %w", req.ActivityID, err)
	}

	log.Printf("[ActivityService] activity %d: %.0f/%.0f m novel, %d cells, %d places",
		req.ActivityID, out.NovelMeters, out.TotalMeters, out.NovelCellCount, len(out.UnlockedPlaces))

	if req.Source == SourceWebhook && out.Annotation != "" && s.dispatcher != nil {
		results, err := s.dispatcher.Run(ctx, annotation.RunOptions{Limit: 1, ActivityID: out.ID})
		if err != nil {
			log.Printf("[ActivityService] annotation dispatch for activity %d failed: %v", req.ActivityID, err)
		}
		out.Dispatch = results
	}

	return out, nil
}

func (s *ActivityService) processTx(ctx context.Context, tx *sql.Tx, req ProcessRequest, rec repository.ActivityRecord) (*ProcessOutcome, error) {
	users := s.users.WithTx(tx)
	activities := s.activities.WithTx(tx)

	if err := users.EnsureUser(ctx, req.UserID); err != nil {
		return nil, err
	}
	pref := req.MeasurementPreference
	if pref != "" {
		if err := users.SetMeasurementPreference(ctx, req.UserID, pref); err != nil {
			return nil, err
		}
	} else {
		stored, err := users.MeasurementPreference(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		pref = stored
	}

	id, err := activities.Upsert(ctx, rec)
	if err != nil {
		return nil, err
	}
	prev, err := activities.GetAnnotationState(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &ProcessOutcome{ID: id, StravaActivityID: req.ActivityID}

	zones, err := s.zones.WithTx(tx).ListZones(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	masked := s.masker.Mask(req.Track, zones)
	if masked == nil {
		update := repository.NoveltyUpdate{Annotation: annotation.NextState(prev, "", rec.ProcessedAt)}
		return out, activities.SaveNovelty(ctx, id, update)
	}

	res, err := s.engine.Run(ctx, s.cells.WithTx(tx), req.UserID, masked)
	if err != nil {
		return nil, fmt.Errorf("novelty: %w", err)
	}
	out.TotalMeters = res.TotalMeters
	out.NovelMeters = res.NovelMeters
	out.NovelFraction = res.NovelFraction
	out.NovelCellCount = res.NovelCellCount

	unlocked, err := s.unlockPlaces(ctx, tx, req, id, masked)
	if err != nil {
		return nil, err
	}
	names := make([]annotation.Place, 0, len(unlocked))
	for _, b := range unlocked {
		out.UnlockedPlaces = append(out.UnlockedPlaces, b.Name)
		names = append(names, annotation.Place{Name: b.Name, PlaceType: b.PlaceType})
	}

	var text string
	if req.Source == SourceWebhook || req.Source == SourceFixture {
		text = annotation.BuildMessage(res.NovelMeters, pref, names)
	}
	out.Annotation = text

	maskedJSON, err := marshalGeometry(masked)
	if err != nil {
		return nil, err
	}
	novelJSON, err := marshalGeometry(res.NovelGeometry())
	if err != nil {
		return nil, err
	}

	update := repository.NoveltyUpdate{
		TotalMeters:    res.TotalMeters,
		NovelMeters:    res.NovelMeters,
		NovelFraction:  res.NovelFraction,
		NovelCellCount: res.NovelCellCount,
		MaskedGeoJSON:  maskedJSON,
		NovelGeoJSON:   novelJSON,
		Annotation:     annotation.NextState(prev, text, rec.ProcessedAt),
	}
	if err := activities.SaveNovelty(ctx, id, update); err != nil {
		return nil, err
	}
	return out, nil
}

// unlockPlaces records the boundaries the track passed through and returns
// the ones the user had never visited
func (s *ActivityService) unlockPlaces(ctx context.Context, tx *sql.Tx, req ProcessRequest, activityRowID int64, track orb.Geometry) ([]places.Boundary, error) {
	repo := s.places.WithTx(tx)
	hits, err := places.NewBoundaryMatcher(repo, s.countries).Match(ctx, track)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(hits))
	byID := make(map[int64]places.Boundary, len(hits))
	for i, b := range hits {
		ids[i] = b.ID
		byID[b.ID] = b
	}

	visitedAt := s.now()
	if t, err := time.Parse(time.RFC3339, req.StartDate); err == nil {
		visitedAt = t
	}

	newIDs, err := repo.MarkVisited(ctx, req.UserID, ids, activityRowID, visitedAt)
	if err != nil {
		return nil, err
	}
	if err := repo.RecordVisits(ctx, req.UserID, ids, activityRowID, visitedAt); err != nil {
		return nil, err
	}

	unlocked := make([]places.Boundary, 0, len(newIDs))
	for _, id := range newIDs {
		unlocked = append(unlocked, byID[id])
	}
	sort.Slice(unlocked, func(i, j int) bool { return unlocked[i].ID < unlocked[j].ID })
	return unlocked, nil
}

func marshalGeometry(g orb.Geometry) (*string, error) {
	if g == nil {
		return nil, nil
	}
	data, err := geojson.NewGeometry(g).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode geometry: %w", err)
	}
	s := string(data)
	return &s, nil
}
