package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/travel-matching/internal/models"
	"github.com/example/travel-matching/internal/observability"
)

var ErrNoSession = errors.New("no ws session")

const defaultWriteWait = 5 * time.Second

// WSSession is one connected user's socket.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(ctx context.Context, rec models.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteWait)
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteJSON(rec)
}

// WSRegistry holds one session per user. A reconnect replaces the previous
// session.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*WSSession)} }

func (r *WSRegistry) Add(userID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[userID]; ok {
		_ = old.conn.Close()
	} else {
		observability.PushSessions.Inc()
	}
	r.sessions[userID] = &WSSession{conn: conn}
}

// Remove drops the session of userID if it still uses conn.
func (r *WSRegistry) Remove(userID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok && s.conn == conn {
		delete(r.sessions, userID)
		observability.PushSessions.Dec()
	}
}

func (r *WSRegistry) Push(ctx context.Context, recipientID string, rec models.NotificationRecord) error {
	r.mu.RLock()
	s, ok := r.sessions[recipientID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(ctx, rec); err != nil {
		r.Remove(recipientID, s.conn)
		return err
	}
	return nil
}
