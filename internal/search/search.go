// Package search filters posted listings by route, date and departure time.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/example/travel-matching/internal/apperr"
	"github.com/example/travel-matching/internal/location"
	"github.com/example/travel-matching/internal/models"
	"github.com/example/travel-matching/internal/observability"
	"github.com/example/travel-matching/internal/storage"
)

// Criteria is a searcher's filter. Every field is optional; Origin and
// Destination must both pass when present.
type Criteria struct {
	Kind        models.ListingKind   `json:"kind,omitempty"`
	Origin      *models.Location     `json:"origin,omitempty"`
	Destination *models.Location     `json:"destination,omitempty"`
	Dates       *models.DateCriteria `json:"dates,omitempty"`
	Mode        location.Mode        `json:"mode,omitempty"`
	Radius      *float64             `json:"radius,omitempty"`
	Unit        models.Unit          `json:"unit,omitempty"`
}

// Validate reports malformed criteria as a validation error.
func (c Criteria) Validate() error {
	var errs []error
	if c.Kind != "" {
		if _, err := models.ParseListingKind(string(c.Kind)); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Origin != nil && c.Origin.Empty() {
		errs = append(errs, errors.New("origin requires a name or coordinates"))
	}
	if c.Destination != nil && c.Destination.Empty() {
		errs = append(errs, errors.New("destination requires a name or coordinates"))
	}
	if c.Dates != nil {
		if c.Dates.Kind == models.DateSet {
			errs = append(errs, errors.New("search dates must be an exact day or a month"))
		} else if err := c.Dates.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := location.ParseMode(string(c.Mode)); err != nil {
		errs = append(errs, err)
	}
	if c.Radius != nil && *c.Radius < 0 {
		errs = append(errs, errors.New("radius must be >= 0"))
	}
	if _, err := c.Unit.ToMiles(0); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return apperr.Validation("search", "%v", err)
	}
	return nil
}

func (c Criteria) radiusMiles() *float64 {
	if c.Radius == nil {
		return nil
	}
	miles, err := c.Unit.ToMiles(*c.Radius)
	if err != nil {
		return nil
	}
	return &miles
}

// Engine applies Criteria to an in-memory corpus.
type Engine struct {
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// checkEvery is how many listings are scanned between cancellation checks.
const checkEvery = 256

// Filter returns the listings of corpus that satisfy c, ordered by ascending
// departure time. Listings that already departed are always dropped.
func (e *Engine) Filter(ctx context.Context, corpus []models.Listing, c Criteria) ([]models.Listing, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	mode, _ := location.ParseMode(string(c.Mode))
	radius := c.radiusMiles()

	var origin, destination *location.Query
	if c.Origin != nil {
		origin = location.NewQuery(*c.Origin, mode, radius)
	}
	if c.Destination != nil {
		destination = location.NewQuery(*c.Destination, mode, radius)
	}

	now := e.now()
	out := make([]models.Listing, 0)
	for i := range corpus {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		l := corpus[i]
		if c.Kind != "" && l.Kind != c.Kind {
			continue
		}
		if c.Dates != nil && !c.Dates.Contains(l.DepartureAt) {
			continue
		}
		if l.Departed(now) {
			continue
		}
		if origin != nil && !origin.Match(l.Origin, l.Waypoints) {
			continue
		}
		if destination != nil && !destination.Match(l.Destination, l.Waypoints) {
			continue
		}
		out = append(out, l)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].DepartureAt.Before(out[j].DepartureAt) })
	return out, nil
}

// ListingSource loads the open listings a search runs over.
type ListingSource interface {
	ListOpenListings(ctx context.Context, f storage.ListingFilter) ([]models.Listing, error)
}

// Service runs searches against the listing store.
type Service struct {
	Store  ListingSource
	Engine *Engine
	Logger *zap.Logger
}

func (s *Service) Search(ctx context.Context, c Criteria) ([]models.Listing, error) {
	start := time.Now()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	corpus, err := s.Store.ListOpenListings(ctx, storage.ListingFilter{Kind: c.Kind, DepartingAfter: s.Engine.now()})
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	out, err := s.Engine.Filter(ctx, corpus, c)
	if err != nil {
		return nil, err
	}
	observability.SearchesTotal.Inc()
	observability.SearchLatency.Observe(time.Since(start).Seconds())
	if s.Logger != nil {
		s.Logger.Debug("search_completed",
			zap.Int("corpus", len(corpus)),
			zap.Int("results", len(out)),
			zap.String("mode", string(c.Mode)),
		)
	}
	return out, nil
}
