package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/travel-matching/internal/models"
)

// FCMPusher posts records to an FCM HTTP v1 send endpoint. Each user's
// devices subscribe to the topic "user_<id>".
type FCMPusher struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func NewFCMPusher(endpoint, key string) *FCMPusher {
	return &FCMPusher{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}}
}

type fcmMessage struct {
	Message fcmBody `json:"message"`
}

type fcmBody struct {
	Topic        string            `json:"topic"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func titleFor(t models.NotificationType) string {
	switch t {
	case models.NotificationRideMatch:
		return "New ride matches your request"
	case models.NotificationTripMatch:
		return "New trip matches your request"
	case models.NotificationRideRequestAlert:
		return "Someone is looking for a ride"
	case models.NotificationTripRequestAlert:
		return "Someone is looking for a trip"
	default:
		return "New notification"
	}
}

func (f *FCMPusher) Push(ctx context.Context, recipientID string, rec models.NotificationRecord) error {
	msg := fcmMessage{Message: fcmBody{
		Topic:        "user_" + recipientID,
		Notification: fcmNotification{Title: titleFor(rec.Type), Body: string(rec.Priority) + " priority"},
		Data: map[string]string{
			"notification_id": rec.ID,
			"type":            string(rec.Type),
			"related_kind":    string(rec.RelatedKind),
			"related_id":      rec.RelatedID,
		},
	}}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Key != "" {
		req.Header.Set("Authorization", "Bearer "+f.Key)
	}
	return doPost(f.Client, req)
}
