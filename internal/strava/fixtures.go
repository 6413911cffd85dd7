package strava

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-polyline"
)

// ErrNoTrack is returned when a fixture has neither streams nor a polyline
var ErrNoTrack = errors.New("strava: activity has no track")

// FixtureSource reads recorded activities from a directory laid out as
// <id>-summary.json, <id>-detail.json and <id>-streams.json
type FixtureSource struct {
	Dir string
}

// Summary is one replayable activity
type Summary struct {
	ID        int64
	StartDate string
	SportType string
}

type streams struct {
	LatLng *struct {
		Data [][2]float64 `json:"data"`
	} `json:"latlng"`
}

func (s FixtureSource) readJSON(name string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse fixture %s: %w", name, err)
	}
	return nil
}

// Detail loads <id>-detail.json, falling back to <id>-summary.json
func (s FixtureSource) Detail(id int64) (*ActivityDetail, error) {
	var detail ActivityDetail
	err := s.readJSON(fmt.Sprintf("%d-detail.json", id), &detail)
	if errors.Is(err, os.ErrNotExist) {
		err = s.readJSON(fmt.Sprintf("%d-summary.json", id), &detail)
	}
	if err != nil {
		return nil, fmt.Errorf("fixture %d: %w", id, err)
	}
	if detail.ID == 0 {
		detail.ID = id
	}
	return &detail, nil
}

// Track loads the latlng stream, or decodes the detail polyline when there
// is no stream. Coordinates are returned as (lon, lat).
func (s FixtureSource) Track(id int64) (orb.LineString, error) {
	var st streams
	err := s.readJSON(fmt.Sprintf("%d-streams.json", id), &st)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil && st.LatLng != nil && len(st.LatLng.Data) >= 2 {
		ls := make(orb.LineString, len(st.LatLng.Data))
		for i, ll := range st.LatLng.Data {
			ls[i] = orb.Point{ll[1], ll[0]}
		}
		return ls, nil
	}

	detail, err := s.Detail(id)
	if err != nil {
		return nil, err
	}
	return DecodePolyline(detail.Polyline())
}

// Summaries lists the *-summary.json fixtures ordered by start date
func (s FixtureSource) Summaries() ([]Summary, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture directory: %w", err)
	}

	var out []Summary
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, "-summary.json") {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(name, "-summary.json"), 10, 64)
		if err != nil {
			continue
		}

		var detail ActivityDetail
		if err := s.readJSON(name, &detail); err != nil {
			return nil, err
		}
		sport := detail.Sport()
		if sport == "" {
			sport = "unknown"
		}
		out = append(out, Summary{ID: id, StartDate: detail.Start(), SportType: sport})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return startTime(out[i].StartDate).Before(startTime(out[j].StartDate))
	})
	return out, nil
}

func startTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DecodePolyline decodes an encoded polyline into (lon, lat) points
func DecodePolyline(encoded string) (orb.LineString, error) {
	if encoded == "" {
		return nil, ErrNoTrack
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}
	if len(coords) < 2 {
		return nil, ErrNoTrack
	}

	ls := make(orb.LineString, len(coords))
	for i, c := range coords {
		ls[i] = orb.Point{c[1], c[0]}
	}
	return ls, nil
}
