// Package http exposes the REST collaborator surface around the
// relay core: account registration and login, conversation history,
// mark-read, and media upload, plus the websocket endpoint itself.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"veilchat/infrastructure/ws"
	"veilchat/services"
	"veilchat/storage"
)

func NewRouter(log *slog.Logger, gateway *ws.Gateway, verifier Verifier,
	authService services.IAuthService, chatService services.IChatService,
	media *storage.MediaStore) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	h := &Handler{
		log:         log,
		authService: authService,
		chatService: chatService,
		media:       media,
	}
	requireAuth := RequireAuth(log, verifier)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", h.Health)

	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)

	r.Handle("/ws", gateway)
	r.Handle("/static/uploads/*",
		http.StripPrefix("/static/uploads/", http.FileServer(http.Dir(media.Dir()))))

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/users/{userID}", h.Peer)
		r.Get("/chats/{userID}/messages", h.History)
		r.Delete("/chats/{userID}/messages", h.ClearChat)
		r.Post("/chats/{userID}/mark-read", h.MarkRead)
		r.Post("/upload", h.Upload)
	})

	return r
}
