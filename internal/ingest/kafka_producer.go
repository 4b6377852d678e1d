package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/travel-matching/internal/models"
	"github.com/example/travel-matching/internal/observability"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const publishTimeout = 2 * time.Second

// KafkaProducer publishes posted listings and requests to their topics,
// keyed by id so events for one entity stay ordered.
type KafkaProducer struct {
	listings messageWriter
	requests messageWriter
	now      func() time.Time
}

func NewKafkaProducer(brokers []string, listingTopic, requestTopic string) *KafkaProducer {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		}
	}
	return &KafkaProducer{listings: newWriter(listingTopic), requests: newWriter(requestTopic), now: time.Now}
}

func (k *KafkaProducer) ListingPosted(ctx context.Context, l models.Listing) error {
	return k.publish(ctx, k.listings, l.ID, Event{Type: ListingPosted, Listing: &l})
}

func (k *KafkaProducer) RequestPosted(ctx context.Context, r models.StandingRequest) error {
	return k.publish(ctx, k.requests, r.ID, Event{Type: RequestPosted, Request: &r})
}

func (k *KafkaProducer) publish(ctx context.Context, w messageWriter, key string, ev Event) error {
	ev.OccurredAt = k.now()
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b}); err != nil {
		observability.EventsPublished.WithLabelValues(string(ev.Type), "error").Inc()
		return err
	}
	observability.EventsPublished.WithLabelValues(string(ev.Type), "ok").Inc()
	return nil
}

func (k *KafkaProducer) Close() error {
	var firstErr error
	for _, w := range []messageWriter{k.listings, k.requests} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
