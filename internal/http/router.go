// Package http constructs the HTTP router for the orchestration API.
package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"warm-transfer-service/internal/api"
	"warm-transfer-service/internal/observability/metrics"
)

// NewRouter constructs the HTTP router for the service.
func NewRouter(handler *api.Handler) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics(handler.Metrics))

	r.Get("/", handler.Root)
	r.Get("/health", handler.Health)
	r.Get("/token", handler.Token)

	r.Post("/call/start", handler.StartCall)
	r.Post("/call/end", handler.EndCall)
	r.Get("/calls/latest", handler.LatestCall)
	r.Get("/calls/active", handler.ActiveCalls)

	r.Post("/summarize", handler.Summarize)

	r.Post("/transfer", handler.InitiateTransfer)
	r.Post("/transfer/complete", handler.CompleteTransfer)
	r.Get("/transfers/active", handler.ActiveTransfers)
	r.Get("/transfer/{transferID}", handler.GetTransfer)

	r.Get("/caller/{callerName}/transfer-status", handler.CallerTransferStatus)
	r.Get("/agent/{agentName}/transfer-status", handler.AgentTransferStatus)

	r.Post("/room/participants", handler.UpdateParticipants)
	r.Get("/room/{roomName}/participants", handler.GetParticipants)

	return r
}

// requestMetrics records served requests by route pattern and status code.
func requestMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.RecordHTTPRequest(route, strconv.Itoa(ww.Status()))
		})
	}
}
