package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/example/travel-matching/internal/models"
)

// WebhookPusher prefers a live websocket session and falls back to posting
// the record to an HTTP endpoint.
type WebhookPusher struct {
	Endpoint string
	Client   *http.Client
	WS       *WSRegistry
}

func NewWebhookPusher(endpoint string, ws *WSRegistry) *WebhookPusher {
	return &WebhookPusher{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}, WS: ws}
}

func (p *WebhookPusher) Push(ctx context.Context, recipientID string, rec models.NotificationRecord) error {
	if p.WS != nil {
		err := p.WS.Push(ctx, recipientID, rec)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNoSession) || p.Endpoint == "" {
			return err
		}
	}
	if p.Endpoint == "" {
		return ErrNoSession
	}
	b, err := json.Marshal(map[string]any{"recipient_id": recipientID, "notification": rec})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doPost(p.Client, req)
}

func doPost(c *http.Client, req *http.Request) error {
	if c == nil {
		c = http.DefaultClient
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push endpoint %s returned %d", req.URL.Host, resp.StatusCode)
	}
	return nil
}

// MultiPusher delivers through every pusher and reports all failures. It
// returns ErrNoSession only when no pusher reached the recipient and none
// failed outright.
type MultiPusher []Pusher

func (m MultiPusher) Push(ctx context.Context, recipientID string, rec models.NotificationRecord) error {
	var errs []error
	offline := 0
	for _, p := range m {
		err := p.Push(ctx, recipientID, rec)
		switch {
		case err == nil:
		case errors.Is(err, ErrNoSession):
			offline++
		default:
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 && offline == len(m) && offline > 0 {
		return ErrNoSession
	}
	return errors.Join(errs...)
}
