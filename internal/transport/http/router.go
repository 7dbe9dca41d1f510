package http

import (
	"net/http"
	"time"

	"github.com/cwrk-planet/collab-service/internal/auth"
	httpmw "github.com/cwrk-planet/collab-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/collab-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(h *Handler, authn auth.Authenticator, wsServer *ws.Server, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// WS endpoint: credential проверяется до upgrade внутри HandleWS
	r.Get("/ws", wsServer.HandleWS)

	// REST для снапшотов — требует Bearer access_token
	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.LoggingMiddleware)
		pr.Use(httpmw.AuthMiddleware(authn))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/courses/{id}/snapshots", func(sr chi.Router) {
			sr.Post("/", h.CreateSnapshot)
			sr.Get("/", h.ListSnapshots)
			sr.Post("/{snapshotID}/restore", h.RestoreSnapshot)
		})
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
