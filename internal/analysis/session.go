// Package analysis assembles the heat-island pipeline on top of a deferred
// earthengine.Evaluator: locality lookup, scene masking, composites,
// thresholds, statistics and the two-city comparison.
package analysis

import (
	"fmt"
	"slices"
	"time"
)

// Localities lists the municipality seats offered by every surface.
var Localities = []string{
	"Balancán",
	"Cárdenas",
	"Frontera",
	"Villahermosa",
	"Comalcalco",
	"Cunduacán",
	"Emiliano Zapata",
	"Huimanguillo",
	"Jalapa",
	"Jalpa de Méndez",
	"Jonuta",
	"Macuspana",
	"Nacajuca",
	"Paraíso",
	"Tacotalpa",
	"Teapa",
	"Tenosique",
}

const (
	DefaultLocality     = "Villahermosa"
	DefaultCloudCeiling = 30.0
	dateLayout          = "2006-01-02"
)

// MinDate is the first day Landsat 8 Level-2 data is considered.
var MinDate = time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)

// DateRange is inclusive on both ends.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (d DateRange) String() string {
	return d.Start.Format(dateLayout) + " a " + d.End.Format(dateLayout)
}

// Session carries everything a panel needs to render. It replaces any
// process-wide selection state and is safe to serialise.
type Session struct {
	Locality     string    `json:"locality"`
	Dates        DateRange `json:"dates"`
	CloudCeiling float64   `json:"cloud_ceiling"`
	Compare      []string  `json:"compare"`
}

// DefaultSession returns the selection a fresh dashboard starts with.
func DefaultSession() Session {
	return Session{
		Locality: DefaultLocality,
		Dates: DateRange{
			Start: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC),
		},
		CloudCeiling: DefaultCloudCeiling,
		Compare:      []string{"Villahermosa", "Teapa"},
	}
}

// ParseDate reads a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrInvalidSession, s)
	}
	return t, nil
}

// Validate checks the selection against the dashboard bounds. today is the
// upper bound of the date picker.
func (s Session) Validate(today time.Time) error {
	if !slices.Contains(Localities, s.Locality) {
		return fmt.Errorf("%w: unknown locality %q", ErrInvalidSession, s.Locality)
	}
	for _, name := range s.Compare {
		if !slices.Contains(Localities, name) {
			return fmt.Errorf("%w: unknown comparison locality %q", ErrInvalidSession, name)
		}
	}
	if s.Dates.Start.IsZero() || s.Dates.End.IsZero() {
		return fmt.Errorf("%w: a start and an end date are required", ErrInvalidSession)
	}
	if s.Dates.End.Before(s.Dates.Start) {
		return fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidSession,
			s.Dates.End.Format(dateLayout), s.Dates.Start.Format(dateLayout))
	}
	if s.Dates.Start.Before(MinDate) {
		return fmt.Errorf("%w: start date must be on or after %s", ErrInvalidSession, MinDate.Format(dateLayout))
	}
	if s.Dates.End.After(today) {
		return fmt.Errorf("%w: end date %s is in the future", ErrInvalidSession, s.Dates.End.Format(dateLayout))
	}
	if s.CloudCeiling <= 0 || s.CloudCeiling > 100 {
		return fmt.Errorf("%w: cloud ceiling must be in (0, 100], got %g", ErrInvalidSession, s.CloudCeiling)
	}
	return nil
}
