package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Shiajyas/social-app-sub002/internal/config"
	"github.com/Shiajyas/social-app-sub002/internal/domain"
	"github.com/Shiajyas/social-app-sub002/internal/service"
	"github.com/Shiajyas/social-app-sub002/internal/ws"
)

// Deps bundles everything the router wires together.
type Deps struct {
	Accounts *service.AccountService
	Chats    *service.ChatService
	Messages *service.MessageService
	Social   *service.SocialService
	Registry *ws.Registry
	Log      *zap.Logger
}

// NewRouter constructs the main HTTP router: auth, the websocket
// endpoint, and the REST reconciliation endpoints clients hit after a
// reconnect.
func NewRouter(cfg *config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(d.Accounts))
			r.Post("/login", handleLogin(d.Accounts))
		})

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Accounts))

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", handleListConversations(d.Chats))
				r.Get("/{conversationID}/messages", handleMessagePage(d.Messages))
				r.Post("/{conversationID}/read", handleMarkRead(d.Chats))
			})

			r.Get("/users/{userID}", handleGetUser(d.Accounts))
			r.Get("/users/{userID}/followers", handleFollowers(d.Social))
			r.Get("/users/{userID}/following", handleFollowing(d.Social))
		})
	})

	r.Get("/ws", ws.MakeHandler(d.Registry, d.Accounts, d.Chats, d.Messages, d.Social, cfg.CORSOrigins, d.Log))

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidMembership),
		errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
