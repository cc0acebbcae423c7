package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig tunes the router.
type RouterConfig struct {
	// RequestTimeout bounds every request except synchronous ingestion.
	// Zero disables the timeout.
	RequestTimeout time.Duration
	// ProbeTimeout bounds each dependency probe of the health check.
	ProbeTimeout time.Duration
	Logger       *slog.Logger
}

// NewRouter creates the chi router for backend.
func NewRouter(backend Backend, cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "api")
	}
	h := &handler{
		backend:      backend,
		probeTimeout: cfg.ProbeTimeout,
		logger:       logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorBody{Error: ErrorDetail{Code: CodeNotFound, Message: "no route for " + r.URL.Path}})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Ingestion may legitimately outlive the request timeout.
		r.Post("/ingest", h.ingest)

		r.Group(func(r chi.Router) {
			if cfg.RequestTimeout > 0 {
				r.Use(middleware.Timeout(cfg.RequestTimeout))
			}
			r.Post("/chat", h.chat)
			r.Get("/conversations/{id}", h.conversation)
			r.Delete("/conversations/{id}", h.deleteConversation)
			r.Get("/ingest/status/{batch_id}", h.batchStatus)
			r.Get("/ingest/supported-formats", h.supportedFormats)
			r.Get("/documents", h.documents)
			r.Get("/health", h.health)
			r.Get("/providers", h.providers)
			r.Put("/providers", h.updateProviders)
			r.Post("/models/fetch", h.fetchModels)
		})
	})
	return r
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
					"remote", r.RemoteAddr)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
