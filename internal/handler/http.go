package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/profile-sync/internal/domain"
	"github.com/profile-sync/internal/profile"
	"github.com/profile-sync/internal/websocket"
)

// Handler provides HTTP handlers for the profile sync API
type Handler struct {
	manager *profile.Manager
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(manager *profile.Manager, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		hub:     hub,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Snapshot is the full façade state exposed to rendering components.
type Snapshot struct {
	Profile            *domain.Profile      `json:"profile"`
	Stats              *domain.Stats        `json:"stats"`
	Badges             []domain.EarnedBadge `json:"badges"`
	RecentBadges       []domain.EarnedBadge `json:"recent_badges"`
	Loading            bool                 `json:"loading"`
	Dirty              bool                 `json:"dirty"`
	LastUpdatedDisplay string               `json:"last_updated_display"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/profiles/{userID}", func(r chi.Router) {
			r.Get("/", h.GetSnapshot)
			r.Patch("/", h.UpdateProfile)
			r.Post("/refresh", h.Refresh)
			r.Get("/stats", h.GetStats)
			r.Get("/badges", h.GetBadges)
		})

		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// GetSnapshot returns the full façade state for a user
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	session := h.manager.Session(r.Context(), userID)
	snapshot := Snapshot{
		Profile:            session.Profile(),
		Stats:              session.Stats(),
		Badges:             session.Badges(),
		RecentBadges:       session.RecentBadges(),
		Loading:            session.Loading(),
		Dirty:              session.Dirty(),
		LastUpdatedDisplay: session.LastUpdatedDisplay(),
	}

	if snapshot.Profile == nil {
		h.writeError(w, http.StatusNotFound, domain.ErrProfileNotFound)
		return
	}
	h.writeSuccess(w, snapshot)
}

// UpdateProfile applies a partial profile update
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var update domain.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if update.Empty() {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	session := h.manager.Session(r.Context(), userID)
	updated := session.Update(r.Context(), update)
	if updated == nil {
		h.writeError(w, http.StatusNotFound, domain.ErrProfileNotFound)
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"profile": updated,
		"dirty":   session.Dirty(),
	})
}

// Refresh forces a cache-bypassing full reload
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	session := h.manager.Session(r.Context(), userID)
	session.Refresh(r.Context())

	if session.Profile() == nil {
		h.writeError(w, http.StatusNotFound, domain.ErrProfileNotFound)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "refreshed"})
}

// GetStats returns the current stats projection
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	session := h.manager.Session(r.Context(), userID)
	stats := session.Stats()
	if stats == nil {
		h.writeError(w, http.StatusNotFound, domain.ErrStatsNotFound)
		return
	}
	h.writeSuccess(w, stats)
}

// GetBadges returns the earned badges and the recent projection
func (h *Handler) GetBadges(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	session := h.manager.Session(r.Context(), userID)
	h.writeSuccess(w, map[string]interface{}{
		"badges":        session.Badges(),
		"recent_badges": session.RecentBadges(),
	})
}
