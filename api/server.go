/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Recoverer:      Panic recovery (500 instead of crash)
  2. RequestID:      chi request id
  3. CorrelationID:  X-Correlation-ID, generated when absent
  4. RequestLogger:  One structured log line per request
  5. Instrument:     Prometheus request count and latency
  6. CORS:           Cross-origin calls from payment channels

ROUTE GROUPS:
  /api/obligations/*            Payment orders (no credentials)
  /api/customer/condominium/*   Lookup, settlement, reversal (credentials)
  /healthz                      Pings both ledgers
  /metrics                      Prometheus
  /*                            Static files

STATIC FILE SERVING:
  Serves cfg.StaticDir when it exists, falling back to index.html for
  unknown paths. Without it a plain index page lists the endpoints.

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Credential gate
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/settlement-bridge/config"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(CorrelationID)
	r.Use(RequestLogger(h.logger))
	r.Use(Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Content-Type", CorrelationIDHeader,
			HeaderAuthUser, HeaderAuthPassword, HeaderAuthEntity,
		},
		ExposedHeaders: []string{HeaderResultCode, HeaderResultDescription, CorrelationIDHeader},
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/obligations", func(r chi.Router) {
			r.Post("/generate-payment-order", h.GeneratePaymentOrder)
			r.Get("/payment-order-state/{code}", h.GetPaymentOrderState)
		})

		r.Route("/customer/condominium", func(r chi.Router) {
			r.Use(RequireCredentials(cfg.APIUser, cfg.APIPassword))
			r.Post("/search-payments", h.SearchPayments)
			r.Post("/make-payment", h.MakePayment)
			r.Delete("/payment-reversion", h.ReversePayment)
		})
	})

	serveStatic(r, cfg.StaticDir)
	return r
}

func serveStatic(r chi.Router, staticDir string) {
	if _, err := os.Stat(staticDir); err == nil {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			fullPath := filepath.Join(staticDir, filepath.Clean("/"+r.URL.Path))
			if _, err := os.Stat(fullPath); os.IsNotExist(err) {
				http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
				return
			}
			fileServer.ServeHTTP(w, r)
		})
		return
	}

	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Settlement Bridge</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Settlement Bridge API</h1>
<h2>Payment orders</h2>
<ul>
<li>POST /api/obligations/generate-payment-order</li>
<li>GET /api/obligations/payment-order-state/{code}</li>
</ul>
<h2>Customer (credential headers required)</h2>
<ul>
<li>POST /api/customer/condominium/search-payments</li>
<li>POST /api/customer/condominium/make-payment</li>
<li>DELETE /api/customer/condominium/payment-reversion</li>
</ul>
<p><a href="/healthz">/healthz</a> &middot; <a href="/metrics">/metrics</a></p>
</body>
</html>`))
	})
}
