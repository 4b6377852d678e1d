package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/travel-matching/internal/models"
)

type EventType string

var ErrUnknownEvent = errors.New("unknown event type")

const (
	ListingPosted EventType = "listing_posted"
	RequestPosted EventType = "request_posted"
)

// Event is the envelope written to Kafka when something is posted.
type Event struct {
	Type       EventType               `json:"type"`
	Listing    *models.Listing         `json:"listing,omitempty"`
	Request    *models.StandingRequest `json:"request,omitempty"`
	OccurredAt time.Time               `json:"occurred_at"`
}

// DecodeEvent parses an envelope and checks that its payload matches its
// type.
func DecodeEvent(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return ev, fmt.Errorf("decode event: %w", err)
	}
	switch ev.Type {
	case ListingPosted:
		if ev.Listing == nil {
			return ev, fmt.Errorf("%s event without listing", ev.Type)
		}
	case RequestPosted:
		if ev.Request == nil {
			return ev, fmt.Errorf("%s event without request", ev.Type)
		}
	default:
		return ev, fmt.Errorf("%w %q", ErrUnknownEvent, ev.Type)
	}
	return ev, nil
}
