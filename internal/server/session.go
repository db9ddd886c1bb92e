package server

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/itss-sierra/islas-calor/internal/analysis"
)

// parseSession reads locality, start, end, cloud and cities from the query
// string. Missing fields keep their defaults.
func parseSession(r *http.Request) (analysis.Session, error) {
	s := analysis.DefaultSession()
	q := r.URL.Query()

	if v := q.Get("locality"); v != "" {
		s.Locality = v
	}
	if v := q.Get("start"); v != "" {
		day, err := analysis.ParseDate(v)
		if err != nil {
			return s, err
		}
		s.Dates.Start = day
	}
	if v := q.Get("end"); v != "" {
		day, err := analysis.ParseDate(v)
		if err != nil {
			return s, err
		}
		s.Dates.End = day
	}
	if v := q.Get("cloud"); v != "" {
		ceiling, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return s, fmt.Errorf("%w: cloud %q is not a number", analysis.ErrInvalidSession, v)
		}
		s.CloudCeiling = ceiling
	}
	if v, ok := q["cities"]; ok {
		s.Compare = nil
		for _, raw := range v {
			for _, city := range strings.Split(raw, ",") {
				if city = strings.TrimSpace(city); city != "" {
					s.Compare = append(s.Compare, city)
				}
			}
		}
	}

	if !slices.Contains(analysis.Localities, s.Locality) {
		return s, fmt.Errorf("%w: unknown locality %q", analysis.ErrInvalidSession, s.Locality)
	}
	for _, city := range s.Compare {
		if !slices.Contains(analysis.Localities, city) {
			return s, fmt.Errorf("%w: unknown locality %q", analysis.ErrInvalidSession, city)
		}
	}
	return s, nil
}
