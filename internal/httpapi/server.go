// Package httpapi exposes the operational HTTP surface: health, metrics,
// status, alert queries, watchlist management, and the live subscriber
// endpoint.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mempool-sentinel/internal/domain"
	"mempool-sentinel/internal/hub"
	"mempool-sentinel/internal/observability"
	"mempool-sentinel/internal/sink"
	"mempool-sentinel/internal/storage"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 500
	defaultBacklog    = 20
)

// Options configures the API server.
type Options struct {
	AlertStore     storage.AlertStore
	WatchlistStore storage.WatchlistStore

	// Hub serves /ws subscribers. Optional.
	Hub *hub.Hub
	// Sink handles POST /api/alerts/test. Optional.
	Sink *sink.Sink

	// FeedState reports the feed connection state for /status. Optional.
	FeedState func() string

	// Backlog is how many recent alerts a new /ws subscriber receives.
	Backlog int

	Logger *zap.Logger
}

// Server is the HTTP API.
type Server struct {
	alerts     storage.AlertStore
	watchlists storage.WatchlistStore
	hub        *hub.Hub
	sink       *sink.Sink
	feedState  func() string
	backlog    int
	logger     *zap.Logger

	started  time.Time
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// NewServer creates the API server and registers its routes.
func NewServer(opts Options) *Server {
	if opts.Backlog <= 0 {
		opts.Backlog = defaultBacklog
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		alerts:     opts.AlertStore,
		watchlists: opts.WatchlistStore,
		hub:        opts.Hub,
		sink:       opts.Sink,
		feedState:  opts.FeedState,
		backlog:    opts.Backlog,
		logger:     opts.Logger,
		started:    time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	s.mux.Handle("/metrics", observability.Handler())
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/api/alerts", s.handleAlerts)
	s.mux.HandleFunc("/api/alerts/test", s.handleTestAlert)
	s.mux.HandleFunc("/api/watchlists", s.handleWatchlists)
	s.mux.HandleFunc("/ws", s.handleWS)
}

// Handler returns the routed handler, also used by httptest servers.
func (s *Server) Handler() http.Handler { return s.mux }

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	FeedState   string `json:"feed_state"`
	Subscribers int64  `json:"subscribers"`
	AlertsTotal int64  `json:"alerts_total"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status: "running",
		Uptime: time.Since(s.started).String(),
	}
	if s.feedState != nil {
		resp.FeedState = s.feedState()
	}
	if s.hub != nil {
		resp.Subscribers = int64(s.hub.Count())
	}
	if n, err := s.alerts.Count(r.Context()); err == nil {
		resp.AlertsTotal = n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > maxAlertLimit {
		limit = maxAlertLimit
	}

	alerts, err := s.alerts.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("list alerts failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []*domain.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// createWatchlistRequest is the POST /api/watchlists body.
type createWatchlistRequest struct {
	Name      string   `json:"name"`
	Addresses []string `json:"addresses"`
	Tokens    []string `json:"tokens"`
}

func (s *Server) handleWatchlists(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		lists, err := s.watchlists.List(r.Context())
		if err != nil {
			s.logger.Error("list watchlists failed", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if lists == nil {
			lists = []*domain.Watchlist{}
		}
		writeJSON(w, http.StatusOK, lists)

	case http.MethodPost:
		var req createWatchlistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}

		wl := &domain.Watchlist{
			Name:      req.Name,
			Addresses: req.Addresses,
			Tokens:    req.Tokens,
		}
		if err := s.watchlists.Insert(r.Context(), wl); err != nil {
			switch {
			case errors.Is(err, storage.ErrDuplicateKey):
				http.Error(w, "watchlist name already exists", http.StatusConflict)
			case errors.Is(err, storage.ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				s.logger.Error("insert watchlist failed", zap.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusCreated, wl)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// testAlertRequest is the POST /api/alerts/test body; all fields optional.
type testAlertRequest struct {
	USDValue float64 `json:"usd_value"`
	TxHash   string  `json:"tx_hash"`
}

// handleTestAlert injects a synthetic alert through the full sink path so
// operators can verify persistence and channel delivery end to end.
func (s *Server) handleTestAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.sink == nil {
		http.Error(w, "alert sink not configured", http.StatusServiceUnavailable)
		return
	}

	var req testAlertRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	}
	if req.USDValue <= 0 {
		req.USDValue = 123456
	}
	if req.TxHash == "" {
		req.TxHash = "0xtest"
	}

	alert, err := s.sink.Publish(r.Context(), sink.Payload{
		EventType:  domain.EventPendingLargeSwap,
		Severity:   50,
		USDValue:   req.USDValue,
		TxHash:     req.TxHash,
		RawContext: map[string]any{"kind": "test"},
		Summary:    "manually injected test alert",
	})
	if err != nil {
		s.logger.Error("test alert publish failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

// handleWS upgrades the connection and attaches it to the hub with a backlog
// of recent alerts.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "live subscriptions not available", http.StatusServiceUnavailable)
		return
	}

	backlog, err := s.alerts.ListRecent(r.Context(), s.backlog)
	if err != nil {
		s.logger.Warn("backlog fetch failed, subscriber starts empty", zap.Error(err))
		backlog = nil
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s.hub.ServeConn(conn, backlog)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
