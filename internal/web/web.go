// Package web serves the whiteboard REST API, the live session stream and
// the operational endpoints.
package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/whiteboard/internal/canvas"
	"github.com/haasonsaas/whiteboard/internal/diagram"
	"github.com/haasonsaas/whiteboard/internal/observability"
)

// DefaultBasePath prefixes every API route.
const DefaultBasePath = "/api"

// Config holds web API configuration.
type Config struct {
	// BasePath is the URL prefix for the API (default: /api)
	BasePath string
	// Manager resolves sessions and applies element writes
	Manager *canvas.Manager
	// Builder synthesizes shapes, arrows and diagrams (optional)
	Builder *diagram.Builder
	// CORSOrigins lists allowed browser origins; "*" allows any
	CORSOrigins []string
	// Tracer starts a span per request (optional)
	Tracer *observability.Tracer
	// HTTPMetrics records request counts and latency (optional)
	HTTPMetrics *observability.HTTPMetrics
	// MetricsHandler serves /metrics (default: promhttp.Handler())
	MetricsHandler http.Handler
	// Logger for request logging
	Logger *slog.Logger
}

// Handler is the whiteboard HTTP handler.
type Handler struct {
	config   *Config
	router   chi.Router
	upgrader websocket.Upgrader
}

// NewHandler creates a new handler.
func NewHandler(cfg *Config) (*Handler, error) {
	if cfg == nil || cfg.Manager == nil {
		return nil, errors.New("web: manager is required")
	}
	if cfg.BasePath == "" {
		cfg.BasePath = DefaultBasePath
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Logger = cfg.Logger.With("component", "web")
	if cfg.Builder == nil {
		cfg.Builder = diagram.NewBuilder(diagram.WithLogger(cfg.Logger))
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}

	h := &Handler{
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 8192,
			CheckOrigin:     func(r *http.Request) bool { return originAllowed(cfg.CORSOrigins, r) },
		},
	}
	h.setupRoutes()
	return h, nil
}

// setupRoutes configures all HTTP routes.
func (h *Handler) setupRoutes() {
	r := chi.NewRouter()
	r.Use(
		TracingMiddleware(h.config.Tracer),
		MetricsMiddleware(h.config.HTTPMetrics),
		LoggingMiddleware(h.config.Logger),
		CORSMiddleware(h.config.CORSOrigins),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.jsonError(w, "Not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	r.Get("/healthz", h.healthz)
	r.Handle("/metrics", h.config.MetricsHandler)

	base := strings.TrimRight(h.config.BasePath, "/")
	if base == "" {
		h.apiRoutes(r)
	} else {
		r.Route(base, h.apiRoutes)
	}
	h.router = r
}

func (h *Handler) apiRoutes(r chi.Router) {
	r.Post("/sessions", h.apiCreateSession)
	r.Get("/sessions", h.apiListSessions)
	r.Route("/sessions/{token}", func(r chi.Router) {
		r.Get("/", h.apiGetSession)
		r.Delete("/", h.apiDeleteSession)
		r.Get("/elements", h.apiGetElements)
		r.Post("/elements", h.apiMergeElements)
		r.Put("/elements", h.apiReplaceElements)
		r.Post("/shapes", h.apiCreateShapes)
		r.Post("/arrows", h.apiCreateArrows)
		r.Post("/diagram", h.apiCreateDiagram)
		r.Get("/snapshot", h.apiSnapshot)
		r.Get("/ws", h.apiStream)
	})
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]string{"status": "ok"})
}

func (h *Handler) manager() *canvas.Manager {
	return h.config.Manager
}

func originAllowed(allowed []string, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	// Same-origin requests are always accepted.
	return strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://") == r.Host
}
