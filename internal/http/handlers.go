package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/example/travel-matching/internal/apperr"
	"github.com/example/travel-matching/internal/models"
	"github.com/example/travel-matching/internal/search"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var c search.Criteria
	if err := decode(r, &c); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.search.Search(r.Context(), c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": out, "count": len(out)})
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var l models.Listing
	if err := decode(r, &l); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.market.CreateListing(r.Context(), actor, l)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	out, err := s.market.GetListing(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCloseListing(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	out, err := s.market.CloseListing(r.Context(), mux.Vars(r)["id"], actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type joinBody struct {
	Seats int `json:"seats"`
}

func (s *Server) handleRequestToJoin(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	body := joinBody{Seats: 1}
	if r.ContentLength != 0 {
		if err := decode(r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	out, err := s.confirm.RequestToJoin(r.Context(), mux.Vars(r)["id"], actor, body.Seats)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req models.StandingRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.market.CreateRequest(r.Context(), actor, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	out, err := s.market.GetRequest(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var sub models.Subscription
	if err := decode(r, &sub); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.market.CreateSubscription(r.Context(), actor, sub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGetConfirmation(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	out, err := s.confirm.Get(r.Context(), mux.Vars(r)["id"], actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	var (
		out *models.Confirmation
		err error
	)
	switch vars["action"] {
	case "accept":
		out, err = s.confirm.Accept(r.Context(), vars["id"], actor)
	case "reject":
		out, err = s.confirm.Reject(r.Context(), vars["id"], actor)
	case "cancel":
		out, err = s.confirm.Cancel(r.Context(), vars["id"], actor)
	case "reverse":
		out, err = s.confirm.Reverse(r.Context(), vars["id"], actor)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	unread := r.URL.Query().Get("unread") == "true"
	out, err := s.market.Notifications(r.Context(), actor, unread)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": out, "count": len(out)})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if err := s.market.MarkRead(r.Context(), mux.Vars(r)["id"], actor); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if err := s.market.DeleteNotification(r.Context(), mux.Vars(r)["id"], actor); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSweep is an operator hook; /internal routes are expected to be
// reachable only from inside the deployment, not through the public gateway.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sweeper.RunExpirySweep(r.Context()))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["user_id"]
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if actor != id {
		s.writeError(w, r, apperr.Forbidden("ws", "cannot subscribe to notifications of %s", id))
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws_upgrade_failed", zap.String("user_id", id), zap.Error(err))
		return
	}
	s.ws.Add(id, conn)
	defer s.ws.Remove(id, conn)
	// Clients only listen; reading drives close and ping handling.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
