// Package httpapi is the JSON adapter over the marketplace, search,
// confirmation and expiry services.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/travel-matching/internal/confirmation"
	"github.com/example/travel-matching/internal/dispatch"
	"github.com/example/travel-matching/internal/expiry"
	"github.com/example/travel-matching/internal/marketplace"
	"github.com/example/travel-matching/internal/search"
)

// Deps are the services the API is a thin layer over. WS may be nil, in
// which case /ws is not served.
type Deps struct {
	Marketplace   *marketplace.Service
	Search        *search.Service
	Confirmations *confirmation.Service
	Sweeper       *expiry.Sweeper
	WS            *dispatch.WSRegistry
	Logger        *zap.Logger
}

type Server struct {
	market   *marketplace.Service
	search   *search.Service
	confirm  *confirmation.Service
	sweeper  *expiry.Sweeper
	ws       *dispatch.WSRegistry
	logger   *zap.Logger
	mux      *mux.Router
	upgrader websocket.Upgrader
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		market:  d.Marketplace,
		search:  d.Search,
		confirm: d.Confirmations,
		sweeper: d.Sweeper,
		ws:      d.WS,
		logger:  logger,
		mux:     mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodPost)

	api.HandleFunc("/listings", s.handleCreateListing).Methods(http.MethodPost)
	api.HandleFunc("/listings/{id}", s.handleGetListing).Methods(http.MethodGet)
	api.HandleFunc("/listings/{id}/close", s.handleCloseListing).Methods(http.MethodPost)
	api.HandleFunc("/listings/{id}/confirmations", s.handleRequestToJoin).Methods(http.MethodPost)

	api.HandleFunc("/requests", s.handleCreateRequest).Methods(http.MethodPost)
	api.HandleFunc("/requests/{id}", s.handleGetRequest).Methods(http.MethodGet)
	api.HandleFunc("/subscriptions", s.handleCreateSubscription).Methods(http.MethodPost)

	api.HandleFunc("/confirmations/{id}", s.handleGetConfirmation).Methods(http.MethodGet)
	api.HandleFunc("/confirmations/{id}/{action:accept|reject|cancel|reverse}", s.handleTransition).Methods(http.MethodPost)

	api.HandleFunc("/notifications", s.handleListNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}/read", s.handleMarkRead).Methods(http.MethodPost)
	api.HandleFunc("/notifications/{id}", s.handleDeleteNotification).Methods(http.MethodDelete)

	s.mux.HandleFunc("/internal/sweep", s.handleSweep).Methods(http.MethodPost)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
	if s.ws != nil {
		s.mux.HandleFunc("/ws/{user_id}", s.handleWS)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
