package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wovenmarket/catalog/internal/service"
	"github.com/wovenmarket/catalog/pkg/health"
	"github.com/wovenmarket/catalog/pkg/middleware"
)

// staticCacheMaxAge is how long browsers may cache served product images.
// Stored names are immutable, so a long TTL is safe.
const staticCacheMaxAge = 86400

// NewRouter creates a chi router with all catalog service routes registered.
func NewRouter(
	productService *service.ProductService,
	healthHandler *health.Handler,
	uploadDir string,
	corsCfg middleware.CORSConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("catalog"))
	r.Use(middleware.Tracing("catalog"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Static serving for uploaded product images. The route requires a file
	// name segment, so directory listings are never reachable.
	fileServer := http.StripPrefix("/uploads/products/", http.FileServer(http.Dir(uploadDir)))
	r.Group(func(r chi.Router) {
		r.Use(middleware.CacheControl(staticCacheMaxAge))
		r.Get("/uploads/products/{fileName}", fileServer.ServeHTTP)
	})

	// Catalog API endpoints
	productHandler := NewProductHandler(productService, logger)

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/", productHandler.ListProducts)
		r.Post("/with-upload", productHandler.CreateWithUpload)
		r.Get("/{id}", productHandler.GetProduct)
		r.Delete("/{id}", productHandler.DeleteProduct)
	})

	return r
}
