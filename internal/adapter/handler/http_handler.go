package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Randon971205/pokemon-inventory-bot/internal/core/domain"
)

const webhookSecretHeader = "X-Webhook-Secret"

// EventHandler is satisfied by *service.Bot.
type EventHandler interface {
	Handle(ctx context.Context, ev domain.Event) domain.Reply
}

type HTTPHandler struct {
	bot    EventHandler
	secret string
}

type EventHTTPRequest struct {
	UserID string `json:"user_id"`
	Handle string `json:"handle"`
	Text   string `json:"text"`
	Option string `json:"option"`
}

type OptionHTTPResponse struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

type EventHTTPResponse struct {
	Text    string               `json:"text"`
	Options []OptionHTTPResponse `json:"options,omitempty"`
}

func NewHTTPHandler(bot EventHandler, secret string) *HTTPHandler {
	return &HTTPHandler{bot: bot, secret: secret}
}

// Router mounts the webhook and the liveness check.
func (h *HTTPHandler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", h.HealthCheck)
	r.Get("/health", h.HealthCheck)
	r.Head("/health", h.HealthCheck)
	r.Post("/api/events", h.Event)
	return r
}

func (h *HTTPHandler) Event(w http.ResponseWriter, r *http.Request) {
	if subtle.ConstantTimeCompare([]byte(r.Header.Get(webhookSecretHeader)), []byte(h.secret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid webhook secret"})
		return
	}

	var req EventHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if strings.TrimSpace(req.UserID) == "" || (req.Text == "" && req.Option == "") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing required fields"})
		return
	}

	reply := h.bot.Handle(r.Context(), domain.Event{
		UserID: req.UserID,
		Handle: req.Handle,
		Text:   req.Text,
		Option: req.Option,
	})

	resp := EventHTTPResponse{Text: reply.Text}
	for _, opt := range reply.Options {
		resp.Options = append(resp.Options, OptionHTTPResponse{Label: opt.Label, Data: opt.Data})
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck answers 200 regardless of bot state.
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
