package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// NewRouter mounts the HTTP API. metrics may be nil to skip /metrics.
// requestTimeout bounds every /inventory request, forecasts included.
func NewRouter(h *HTTPHandler, metrics http.Handler, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(recoverer(h.logger))

	r.Get("/health", h.HealthCheck)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/inventory", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		if requestTimeout > 0 {
			r.Use(middleware.Timeout(requestTimeout))
		}

		r.Post("/sale", h.RecordSale)
		r.Post("/receipt", h.RecordReceipt)
		r.Post("/sale_batch", h.SaleBatch)
		r.Post("/receipt_batch", h.ReceiptBatch)
		r.Get("/low_stock_alerts", h.LowStockAlerts)
		r.Get("/overstocked_alerts", h.OverstockAlerts)
		r.Get("/forecast", h.Forecast)
		r.Get("/reorder_recommendation", h.ReorderRecommendation)
		r.Get("/{store_id}/{product_id}", h.GetInventory)
	})

	return r
}
