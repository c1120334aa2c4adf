package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aidispatch/internal/backend"
	"aidispatch/internal/dispatcher"
)

// Service defines the methods required by the HTTP API layer.
// *dispatcher.Dispatcher satisfies it.
type Service interface {
	AllBackendStatus(ctx context.Context) []backend.Status
	ActiveIdentity() backend.Identity
	SwitchBackend(ctx context.Context, id backend.Identity) error
	Settings() dispatcher.Settings
	UpdateSettings(ctx context.Context, patch dispatcher.SettingsPatch) (dispatcher.Settings, error)

	Chat(ctx context.Context, req backend.ChatRequest) (iter.Seq2[string, error], error)
	ChatComplete(ctx context.Context, req backend.ChatRequest) (backend.ChatResponse, error)
	GenerateEmbedding(ctx context.Context, req backend.EmbeddingRequest) (backend.EmbeddingResult, error)
	ProcessImage(ctx context.Context, req backend.VisionRequest) (backend.VisionResponse, error)

	ListModels(ctx context.Context) ([]backend.ModelInfo, error)
	DownloadModel(ctx context.Context, name string, onProgress func(backend.PullProgress)) error
	DeleteModel(ctx context.Context, name string) ([]backend.ModelInfo, error)
}

// EventSource feeds GET /events. *dispatcher.Broadcaster satisfies it.
type EventSource interface {
	Subscribe(buffer int) (<-chan dispatcher.Event, func())
}

// NewMux builds the HTTP handler. events may be nil, in which case GET
// /events answers 404.
func NewMux(svc Service, events EventSource) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(MetricsMiddleware)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc}
	r.Get("/status", h.status)
	r.Post("/switch", h.switchBackend)
	r.Get("/settings", h.getSettings)
	r.Patch("/settings", h.patchSettings)

	r.Post("/chat", h.chat)
	r.Post("/embeddings", h.embeddings)
	r.Post("/vision", h.vision)

	r.Get("/models", h.listModels)
	r.Post("/models/pull", h.pullModel)
	// Model names may contain slashes (org/model).
	r.Delete("/models/*", h.deleteModel)

	r.Get("/events", eventsHandler(events))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.ActiveIdentity() != "" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no active backend"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// decodeJSON enforces the content type and body limit and decodes into v.
// It writes the error response itself and reports whether decoding worked.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Debug().Err(err).Msg("encode response")
	}
}
