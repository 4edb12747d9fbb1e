package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/relaydesk/golang_services/internal/outbox_service/middleware"
)

// NewRouter wires the dispatcher service's HTTP surface: the send API plus
// operational endpoints.
func NewRouter(handler *SendHandler, jwtSecret string, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chi_middleware.RequestID)
	r.Use(chi_middleware.RealIP)
	r.Use(chi_middleware.Recoverer)
	r.Use(PrometheusMetricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.JWTAuthMiddleware(jwtSecret, logger))
		api.Post("/channels/{channelID}/messages", handler.HandleSendMessage)
	})

	logger.Info("Dispatcher API routes registered")
	return r
}
