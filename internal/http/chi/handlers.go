package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sitecraft/webhook-outbox/delivery"
)

// Handlers sets up the delivery API routes
func Handlers(ctx context.Context, deliveryService delivery.UseCase) *chi.Mux {
	logger := httplog.NewLogger("webhook-outbox", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	/* Dispatch trigger, shaped like a serverless entry point:
	 * POST with {"delivery_id"} processes one record, GET runs a sweep
	 * (the cron caller's path), OPTIONS is the CORS preflight.
	 * The dispatch route has no middleware timeout: a full sweep page of
	 * slow destinations legitimately takes longer than one attempt's bound.
	 */
	r.Post("/", postDispatch(deliveryService).ServeHTTP)
	r.Get("/", getSweep(deliveryService).ServeHTTP)
	r.Options("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Collaborator API: producers enqueue deliveries and read status back
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Post("/deliveries", postDelivery(deliveryService).ServeHTTP)
		r.Get("/deliveries/{id}", getDelivery(deliveryService).ServeHTTP)

		r.Get("/endpoints", getEndpoints(deliveryService).ServeHTTP)
		r.Get("/endpoints/{id}", getEndpoint(deliveryService).ServeHTTP)
	})

	return r
}

// cors adds the headers the browser-based dashboard needs on every response
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		next.ServeHTTP(w, r)
	})
}
