package location

import (
	"fmt"
	"strings"

	"github.com/example/travel-matching/internal/geo"
	"github.com/example/travel-matching/internal/models"
)

// Mode selects between precise and recall-oriented matching.
type Mode string

const (
	// Strict requires the normalized names to be equal.
	Strict Mode = "strict"
	// Flexible accepts text containment or coordinates within a radius.
	Flexible Mode = "flexible"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Strict, Flexible:
		return Mode(s), nil
	case "":
		return Flexible, nil
	default:
		return "", fmt.Errorf("unknown match mode %q", s)
	}
}

// Query is a searched location prepared for repeated matching against many
// candidates.
type Query struct {
	search      models.Location
	mode        Mode
	radiusMiles *float64
	variants    []string
}

// NewQuery prepares search for matching. radiusMiles may be nil, in which
// case no distance check is made.
func NewQuery(search models.Location, mode Mode, radiusMiles *float64) *Query {
	q := &Query{search: search, mode: mode, radiusMiles: radiusMiles}
	if strings.TrimSpace(search.Name) != "" {
		q.variants = Variants(search.Name)
	}
	return q
}

// Match reports whether the candidate location, or in flexible mode any of
// its waypoints, satisfies the query.
func (q *Query) Match(candidate models.Location, waypoints []models.Location) bool {
	if q.mode == Strict {
		return q.equal(candidate.Name)
	}

	if len(q.variants) > 0 {
		if q.contains(candidate.Name) {
			return true
		}
		for _, wp := range waypoints {
			if q.contains(wp.Name) {
				return true
			}
		}
	}

	if q.radiusMiles == nil || q.search.Coord == nil {
		return false
	}
	if geo.Within(candidate.Coord, q.search.Coord, *q.radiusMiles) {
		return true
	}
	for _, wp := range waypoints {
		if geo.Within(wp.Coord, q.search.Coord, *q.radiusMiles) {
			return true
		}
	}
	return false
}

// equal compares the search and the candidate's full name or primary
// segment, each through its own abbreviation expansions.
func (q *Query) equal(name string) bool {
	if len(q.variants) == 0 || strings.TrimSpace(name) == "" {
		return false
	}
	forms := append(Variants(name), Variants(Primary(name))...)
	for _, f := range forms {
		for _, v := range q.variants {
			if f == v {
				return true
			}
		}
	}
	return false
}

// contains reports whether one side's words appear as a contiguous run of
// whole words in the other. "paris" is in "paris france" but not in
// "parisville".
func (q *Query) contains(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	for _, f := range Variants(name) {
		if strings.TrimSpace(f) == "" {
			continue
		}
		for _, v := range q.variants {
			if strings.TrimSpace(v) == "" {
				continue
			}
			if containsWords(f, v) || containsWords(v, f) {
				return true
			}
		}
	}
	return false
}

func containsWords(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

// Matches is the one-shot form of NewQuery(search, mode, radiusMiles).Match.
func Matches(candidate models.Location, waypoints []models.Location, search models.Location, mode Mode, radiusMiles *float64) bool {
	return NewQuery(search, mode, radiusMiles).Match(candidate, waypoints)
}
