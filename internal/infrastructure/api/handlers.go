// Package api serves the session storage admin routes and the Shopify webhook endpoint.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"shopify-session-storage/internal/application"
	"shopify-session-storage/internal/domain"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// healthWait bounds how long /health waits for a storage that is still initializing
const healthWait = time.Second

// AdminKeyHeader carries the key required by the session routes
const AdminKeyHeader = "X-Admin-Key"

// Handlers serves the session storage HTTP API
type Handlers struct {
	sessions   *application.SessionService
	dispatcher *application.WebhookDispatcher
	app        goshopify.App
	adminKey   string
	logger     zerolog.Logger
}

// sessionView is the HTTP representation of a session. Access tokens are never returned.
type sessionView struct {
	ID               string                   `json:"id"`
	Shop             string                   `json:"shop"`
	State            string                   `json:"state"`
	IsOnline         bool                     `json:"isOnline"`
	Scope            string                   `json:"scope,omitempty"`
	Expires          *time.Time               `json:"expires,omitempty"`
	HasAccessToken   bool                     `json:"hasAccessToken"`
	OnlineAccessInfo *domain.OnlineAccessInfo `json:"onlineAccessInfo,omitempty"`
}

func newSessionView(s *domain.Session) sessionView {
	return sessionView{
		ID:               s.ID,
		Shop:             s.Shop,
		State:            s.State,
		IsOnline:         s.IsOnline,
		Scope:            s.Scope,
		Expires:          s.Expires,
		HasAccessToken:   s.AccessToken != "",
		OnlineAccessInfo: s.OnlineAccessInfo,
	}
}

// NewHandlers creates the HTTP handlers. apiSecret verifies webhook signatures and
// adminKey guards the session routes; when either is empty its routes reject every request.
func NewHandlers(
	sessions *application.SessionService,
	dispatcher *application.WebhookDispatcher,
	apiKey, apiSecret, adminKey string,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		sessions:   sessions,
		dispatcher: dispatcher,
		app:        goshopify.App{ApiKey: apiKey, ApiSecret: apiSecret},
		adminKey:   adminKey,
		logger:     logger,
	}
}

// Mount registers the routes on r. Only /health and the signed webhook are public.
func (h *Handlers) Mount(r chi.Router) {
	r.Get("/health", h.health)
	r.Post("/webhooks/shopify", h.webhook)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAdminKey)
		r.Get("/sessions/{id}", h.getSession)
		r.Delete("/sessions/{id}", h.deleteSession)
		r.Get("/shops/{shop}/sessions", h.findSessions)
	})
}

// requireAdminKey rejects requests whose X-Admin-Key does not match the configured key
func (h *Handlers) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(AdminKeyHeader)
		if h.adminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.adminKey)) != 1 {
			h.logger.Warn().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Rejected admin request")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthWait)
	defer cancel()

	if err := h.sessions.Ready(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := h.sessions.Load(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Failed to load session")
		return
	}
	if session == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session))
}

func (h *Handlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) findSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.FindByShop(r.Context(), chi.URLParam(r, "shop"))
	if err != nil {
		h.writeError(w, err, "Failed to find sessions")
		return
	}
	views := make([]sessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, newSessionView(session))
	}
	writeJSON(w, http.StatusOK, views)
}

// webhook handles Shopify webhook requests
func (h *Handlers) webhook(w http.ResponseWriter, r *http.Request) {
	topic := r.Header.Get("X-Shopify-Topic")
	if topic == "" {
		h.logger.Warn().Msg("Missing X-Shopify-Topic header")
		http.Error(w, "Missing X-Shopify-Topic header", http.StatusBadRequest)
		return
	}

	// VerifyWebhookRequest restores the body after reading it
	if h.app.ApiSecret == "" || !h.app.VerifyWebhookRequest(r) {
		h.logger.Warn().Str("topic", topic).Msg("Webhook signature verification failed")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read webhook payload")
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	event := &domain.WebhookEvent{
		Topic:    topic,
		Shop:     r.Header.Get("X-Shopify-Shop-Domain"),
		Payload:  payload,
		Verified: true,
	}

	if err := h.dispatcher.Dispatch(r.Context(), event); err != nil {
		h.logger.Error().
			Err(err).
			Str("topic", topic).
			Str("shop", event.Shop).
			Msg("Failed to dispatch webhook event")

		// 500 makes Shopify retry
		http.Error(w, "Failed to process webhook event", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
}

func (h *Handlers) writeError(w http.ResponseWriter, err error, msg string) {
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrStorageDisconnected) {
		status = http.StatusServiceUnavailable
	}
	h.logger.Error().Err(err).Msg(msg)
	http.Error(w, msg, status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
