package api

import (
	"delivery-batch-service/internal/api/handlers"
	"delivery-batch-service/internal/platform/metrics"
	"delivery-batch-service/internal/platform/socket"
	"delivery-batch-service/internal/ports"
	"delivery-batch-service/internal/services"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Deps struct {
	Batches   *services.BatchService
	Lifecycle *services.LifecycleManager
	Predictor *services.Predictor
	Manifests *services.ManifestGenerator
	Photos    ports.PhotoStore
	Hub       *socket.Hub
	Metrics   *metrics.Metrics
	Log       *zap.Logger
	Now       func() time.Time
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	batchHandler := &handlers.BatchHandler{
		Batches:   d.Batches,
		Lifecycle: d.Lifecycle,
		Manifests: d.Manifests,
		Now:       d.Now,
	}
	deliveryHandler := &handlers.DeliveryHandler{
		Lifecycle: d.Lifecycle,
		Batches:   d.Batches,
		Photos:    d.Photos,
	}
	fulfillmentHandler := &handlers.FulfillmentHandler{Predictor: d.Predictor}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(observe(log, d.Metrics))
	r.Use(middleware.Recoverer)

	r.Get("/health", handlers.Health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Post("/fulfillment/predict", fulfillmentHandler.Predict)

	r.Route("/orders", func(r chi.Router) {
		r.Route("/delivery-batches", func(r chi.Router) {
			r.Get("/", batchHandler.List)
			r.Post("/refresh", batchHandler.Refresh)

			r.Route("/{ref}", func(r chi.Router) {
				r.Get("/", batchHandler.Get)
				r.Post("/optimize", batchHandler.Optimize)
				r.Get("/manifest", batchHandler.Manifest)
				r.Get("/status", batchHandler.Status)
				r.Patch("/status", batchHandler.UpdateStatus)
				r.Post("/archive", batchHandler.Archive)
			})
		})

		r.Post("/{orderId}/deliver", deliveryHandler.Deliver)
	})

	if d.Hub != nil {
		eventsHandler := &handlers.EventsHandler{Hub: d.Hub}
		r.Get("/ws/batches", eventsHandler.Stream)
	}

	return r
}
