package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/travel-matching/internal/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { f.closed = true; return nil }

func TestProducerRoutesEventsByType(t *testing.T) {
	at := time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC)
	lw, rw := &fakeWriter{}, &fakeWriter{}
	p := &KafkaProducer{listings: lw, requests: rw, now: func() time.Time { return at }}

	require.NoError(t, p.ListingPosted(context.Background(), models.Listing{ID: "L1", Kind: models.KindTrip}))
	require.NoError(t, p.RequestPosted(context.Background(), models.StandingRequest{ID: "R1"}))

	require.Len(t, lw.msgs, 1)
	require.Len(t, rw.msgs, 1)
	assert.Equal(t, "L1", string(lw.msgs[0].Key))

	ev, err := DecodeEvent(lw.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, ListingPosted, ev.Type)
	assert.Equal(t, models.KindTrip, ev.Listing.Kind)
	assert.True(t, ev.OccurredAt.Equal(at))

	ev, err = DecodeEvent(rw.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "R1", ev.Request.ID)

	require.NoError(t, p.Close())
	assert.True(t, lw.closed)
	assert.True(t, rw.closed)
}

func TestProducerSurfacesWriteErrors(t *testing.T) {
	p := &KafkaProducer{listings: &fakeWriter{err: errors.New("leader not available")}, requests: &fakeWriter{}, now: time.Now}
	assert.Error(t, p.ListingPosted(context.Background(), models.Listing{ID: "L1"}))
}

func TestDecodeEventRejectsMismatchedPayload(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"type":"listing_posted"}`))
	assert.Error(t, err)
	_, err = DecodeEvent([]byte(`{"type":"driver_location","listing":{}}`))
	assert.Error(t, err)
	_, err = DecodeEvent([]byte(`not json`))
	assert.Error(t, err)
}
