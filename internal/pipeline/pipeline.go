// Package pipeline connects matching to notification dispatch. The API runs
// it inline after a post when no event stream is configured; otherwise the
// Kafka consumer runs it per event.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/travel-matching/internal/ingest"
	"github.com/example/travel-matching/internal/matcher"
	"github.com/example/travel-matching/internal/models"
)

type Matcher interface {
	OnListingPosted(ctx context.Context, l models.Listing) (matcher.ListingResult, error)
	OnRequestPosted(ctx context.Context, r models.StandingRequest) (matcher.RequestResult, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, matches []models.Match) (int, error)
}

type Pipeline struct {
	Matcher    Matcher
	Dispatcher Dispatcher
	Logger     *zap.Logger
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}

func (p *Pipeline) ListingPosted(ctx context.Context, l models.Listing) error {
	res, err := p.Matcher.OnListingPosted(ctx, l)
	if err != nil {
		return fmt.Errorf("match listing %s: %w", l.ID, err)
	}
	created, err := p.Dispatcher.Dispatch(ctx, res.Matches)
	p.logger().Info("listing_posted_dispatched",
		zap.String("listing_id", l.ID),
		zap.Int("matches", len(res.Matches)),
		zap.Int("created", created),
	)
	return err
}

func (p *Pipeline) RequestPosted(ctx context.Context, r models.StandingRequest) error {
	res, err := p.Matcher.OnRequestPosted(ctx, r)
	if err != nil {
		return fmt.Errorf("match request %s: %w", r.ID, err)
	}
	created, err := p.Dispatcher.Dispatch(ctx, res.Matches)
	p.logger().Info("request_posted_dispatched",
		zap.String("request_id", r.ID),
		zap.Int("matches", len(res.Matches)),
		zap.Int("created", created),
	)
	return err
}

// Handle runs the pipeline for one decoded event.
func (p *Pipeline) Handle(ctx context.Context, ev ingest.Event) error {
	switch ev.Type {
	case ingest.ListingPosted:
		return p.ListingPosted(ctx, *ev.Listing)
	case ingest.RequestPosted:
		return p.RequestPosted(ctx, *ev.Request)
	default:
		return fmt.Errorf("handle: %w %q", ingest.ErrUnknownEvent, ev.Type)
	}
}
