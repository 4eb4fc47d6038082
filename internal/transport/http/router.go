package http

import (
	"net/http"
	"time"

	httpmw "github.com/cwrk-planet/support-chat/internal/transport/http/middleware"
	"github.com/cwrk-planet/support-chat/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(h *Handler, verifier httpmw.TokenVerifier, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// WS endpoint: авторизация внутри хендлера — отказы мапятся
	// на close-коды, а не на HTTP-статусы
	r.Get("/ws/conversations/{cid}", wsServer.HandleWS)

	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.AuthMiddleware(verifier))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/conversations", func(cr chi.Router) {
			cr.Get("/", h.ListConversations)
			cr.Post("/", h.CreateConversation)
			cr.Get("/{cid}/messages", h.GetMessages)
		})

		pr.Route("/notifications", func(nr chi.Router) {
			nr.Get("/", h.ListNotifications)
			nr.Post("/{nid}/read", h.ReadNotification)
		})

		pr.Post("/uploads", h.Upload)
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
