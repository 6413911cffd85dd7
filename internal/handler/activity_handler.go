package handler

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jengzang/lorg-backend-go/internal/middleware"
	"github.com/jengzang/lorg-backend-go/internal/service"
	"github.com/jengzang/lorg-backend-go/internal/strava"
	"github.com/jengzang/lorg-backend-go/pkg/response"
)

// ProcessActivityRequest is the body of POST /api/v1/activities/process.
// Without a geometry the activity is loaded from the fixture directory.
type ProcessActivityRequest struct {
	ActivityID            int64             `json:"activity_id" binding:"required"`
	SportType             string            `json:"sport_type"`
	StartDate             string            `json:"start_date"`
	Trainer               bool              `json:"trainer"`
	Manual                bool              `json:"manual"`
	DistanceMeters        *float64          `json:"distance_m"`
	MeasurementPreference string            `json:"measurement_preference"`
	Source                string            `json:"source"` // "webhook" or "api"
	Geometry              *geojson.Geometry `json:"geometry"`
}

// ActivityHandler handles HTTP requests for activity processing
type ActivityHandler struct {
	service  *service.ActivityService
	fixtures *strava.FixtureSource
}

// NewActivityHandler creates a new activity handler. fixtures may be nil.
func NewActivityHandler(service *service.ActivityService, fixtures *strava.FixtureSource) *ActivityHandler {
	return &ActivityHandler{service: service, fixtures: fixtures}
}

// ProcessActivity handles POST /api/v1/activities/process
func (h *ActivityHandler) ProcessActivity(c *gin.Context) {
	var body ProcessActivityRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	userID := c.GetString(middleware.UserIDKey)

	var req service.ProcessRequest
	if body.Geometry == nil {
		if h.fixtures == nil {
			response.BadRequest(c, "geometry is required")
			return
		}
		fixtureReq, err := h.fixtureRequest(userID, body.ActivityID)
		if errors.Is(err, os.ErrNotExist) {
			response.NotFound(c, "Fixture not found")
			return
		}
		if err != nil {
			response.Error(c, http.StatusUnprocessableEntity, "Failed to load fixture", err)
			return
		}
		req = fixtureReq
	} else {
		source := body.Source
		if source != service.SourceWebhook {
			source = service.SourceAPI
		}
		req = service.ProcessRequest{
			UserID:                userID,
			ActivityID:            body.ActivityID,
			SportType:             body.SportType,
			StartDate:             body.StartDate,
			Trainer:               body.Trainer,
			Manual:                body.Manual,
			DistanceMeters:        body.DistanceMeters,
			MeasurementPreference: body.MeasurementPreference,
			Source:                source,
			Track:                 body.Geometry.Geometry(),
		}
	}

	out, err := h.service.ProcessActivity(c.Request.Context(), req)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to process activity", err)
		return
	}

	response.Success(c, out)
}

func (h *ActivityHandler) fixtureRequest(userID string, id int64) (service.ProcessRequest, error) {
	detail, err := h.fixtures.Detail(id)
	if err != nil {
		return service.ProcessRequest{}, err
	}

	var track orb.Geometry
	ls, err := h.fixtures.Track(id)
	switch {
	case err == nil:
		track = ls
	case errors.Is(err, strava.ErrNoTrack):
		// recorded as skipped by the pipeline
	default:
		return service.ProcessRequest{}, err
	}

	return service.RequestFromDetail(userID, service.SourceFixture, detail, track), nil
}
