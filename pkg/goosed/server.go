package goosed

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/goose-agent/core/pkg/message"
)

// NewRouter builds the HTTP surface described by the configuration's
// secret key: when one is configured, every route below requires a
// matching X-Secret-Key header; an empty secret disables the check.
func NewRouter(manager *Manager) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "X-Secret-Key"},
	}))
	r.Use(secretKeyAuth(manager.cfg.SecretKey))

	r.Post("/agent", handleCreateAgent(manager))
	r.Get("/agent/versions", handleVersions(manager))
	r.Get("/agent/providers", handleProviders(manager))
	r.Post("/agent/{id}/reply", handleReply(manager))

	return r
}

// secretKeyAuth rejects every request whose X-Secret-Key header does not
// match the configured secret. An empty configured secret means auth is
// disabled (local/dev use), matching the shared-secret-only scope named
// in the provider contract's non-goals.
func secretKeyAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if secret != "" && req.Header.Get("X-Secret-Key") != secret {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func handleCreateAgent(manager *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		agent, err := manager.CreateAgent(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": agent.ID, "model": agent.Model})
	}
}

func handleVersions(manager *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"versions": manager.Versions()})
	}
}

func handleProviders(manager *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"providers": manager.Providers()})
	}
}

// replyRequest is the body of POST /agent/{id}/reply.
type replyRequest struct {
	Text string `json:"text"`
}

// handleReply streams one newline-delimited JSON Message per reply-loop
// yield, flushed as produced, matching the external-interfaces contract.
func handleReply(manager *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		agent, ok := manager.Agent(id)
		if !ok {
			http.Error(w, "unknown agent id", http.StatusNotFound)
			return
		}

		var body replyRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)

		flusher, canFlush := w.(http.Flusher)
		encoder := json.NewEncoder(w)

		err := agent.Reply(req.Context(), body.Text, func(msg message.Message) error {
			if err := encoder.Encode(msg); err != nil {
				return err
			}
			if canFlush {
				flusher.Flush()
			}
			return nil
		})
		if err != nil {
			_ = encoder.Encode(map[string]string{"error": err.Error()})
			if canFlush {
				flusher.Flush()
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
