package annotation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jengzang/lorg-backend-go/internal/models"
)

const (
	explorePrefix = "🗺️ Explored "
	legacyPrefix  = "🗺️ Unlocked "

	metersPerMile = 1609.34
	maxPlaceNames = 3
)

var paragraphBreak = regexp.MustCompile(`\n{2,}`)

// Place is an unlocked place named in the annotation
type Place struct {
	Name      string `json:"name"`
	PlaceType string `json:"place_type"`
}

// BuildMessage renders the annotation text for an activity. Distances are in
// kilometers when measurementPref is "meters" and in miles otherwise. It
// returns "" when there is neither novel distance nor an unlocked place.
func BuildMessage(novelMeters float64, measurementPref string, places []Place) string {
	if !(novelMeters > 0) && len(places) == 0 {
		return ""
	}
	if !(novelMeters > 0) {
		novelMeters = 0
	}

	var distance string
	if strings.EqualFold(measurementPref, "meters") {
		distance = fmt.Sprintf("%.1f new kilometers", novelMeters/1000)
	} else {
		distance = fmt.Sprintf("%.1f new miles", novelMeters/metersPerMile)
	}

	msg := explorePrefix + distance + " in Lorg"
	if len(places) > 0 {
		names := make([]string, 0, maxPlaceNames)
		for i, p := range places {
			if i == maxPlaceNames {
				break
			}
			names = append(names, p.Name)
		}
		msg += ". 📍 New places: " + strings.Join(names, ", ")
		if extra := len(places) - maxPlaceNames; extra > 0 {
			msg += fmt.Sprintf(", +%d more", extra)
		}
	}
	return msg
}

func isAnnotationParagraph(p string) bool {
	p = strings.TrimLeft(p, " \t\r\n")
	return strings.HasPrefix(p, explorePrefix) || strings.HasPrefix(p, legacyPrefix)
}

// StripAnnotation removes every paragraph this service wrote, including the
// older "Unlocked" wording
func StripAnnotation(description string) string {
	var kept []string
	for _, p := range paragraphBreak.Split(description, -1) {
		p = strings.TrimSpace(p)
		if p == "" || isAnnotationParagraph(p) {
			continue
		}
		kept = append(kept, p)
	}
	return strings.TrimSpace(strings.Join(kept, "\n\n"))
}

// MergeDescription replaces any previous annotation in existing with
// annotation, appended as the last paragraph. unchanged reports whether the
// result equals existing modulo surrounding whitespace.
func MergeDescription(existing, annotation string) (description string, unchanged bool) {
	base := StripAnnotation(existing)
	description = annotation
	if base != "" {
		description = base + "\n\n" + annotation
	}
	unchanged = strings.TrimSpace(existing) == strings.TrimSpace(description)
	return description, unchanged
}

// NextState computes the annotation bookkeeping after reprocessing. An empty
// text clears everything. Identical text keeps the previous timestamps and
// attempt count so an applied annotation is not rewritten; changed text is
// stamped with now and becomes pending again.
func NextState(prev models.AnnotationState, text string, now time.Time) models.AnnotationState {
	if text == "" {
		return models.AnnotationState{}
	}
	if prev.Text != nil && *prev.Text == text {
		next := prev
		next.Text = &text
		return next
	}
	return models.AnnotationState{
		Text:        &text,
		GeneratedAt: &now,
	}
}
