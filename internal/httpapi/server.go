// Package httpapi exposes the narration editor's REST surface. Handlers are
// thin: they decode requests, call the domain services, and map domain
// errors onto HTTP status codes. All responses are JSON except raw audio and
// export payloads.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/narravox/narravox/internal/chunks"
	"github.com/narravox/narravox/internal/export"
	"github.com/narravox/narravox/internal/health"
	"github.com/narravox/narravox/internal/observe"
	"github.com/narravox/narravox/internal/project"
	"github.com/narravox/narravox/internal/variants"
	"github.com/narravox/narravox/pkg/provider/concat"
	"github.com/narravox/narravox/pkg/provider/tts"
)

// Server wires the domain services into HTTP handlers.
type Server struct {
	store      project.Store
	reconciler *chunks.Reconciler
	generator  *variants.Generator
	activator  *variants.Activator
	assembler  *export.Assembler
	voices     tts.Provider
	health     *health.Handler
	metrics    *observe.Metrics
}

// New creates a Server. health and metrics may be nil; the corresponding
// endpoints are then omitted or unobserved.
func New(
	store project.Store,
	reconciler *chunks.Reconciler,
	generator *variants.Generator,
	activator *variants.Activator,
	assembler *export.Assembler,
	voices tts.Provider,
	healthHandler *health.Handler,
	metrics *observe.Metrics,
) *Server {
	return &Server{
		store:      store,
		reconciler: reconciler,
		generator:  generator,
		activator:  activator,
		assembler:  assembler,
		voices:     voices,
		health:     healthHandler,
		metrics:    metrics,
	}
}

// Handler returns the complete HTTP handler: all API routes plus health and
// metrics endpoints, wrapped in the observability middleware when metrics
// are configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Projects.
	mux.HandleFunc("GET /api/projects", s.listProjects)
	mux.HandleFunc("POST /api/projects", s.createProject)
	mux.HandleFunc("GET /api/projects/{id}", s.getProject)
	mux.HandleFunc("PUT /api/projects/{id}", s.renameProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.deleteProject)
	mux.HandleFunc("GET /api/projects/{id}/text", s.getText)
	mux.HandleFunc("PUT /api/projects/{id}/text", s.putText)
	mux.HandleFunc("GET /api/projects/{id}/voice", s.getVoice)
	mux.HandleFunc("PUT /api/projects/{id}/voice", s.putVoice)

	// Chunks.
	mux.HandleFunc("PUT /api/chunks/{id}/settings", s.putChunkSettings)
	mux.HandleFunc("DELETE /api/chunks/{id}/settings", s.resetChunkSettings)
	mux.HandleFunc("POST /api/chunks/{id}/generate", s.generate)
	mux.HandleFunc("GET /api/chunks/{id}/generate", s.listVariants)

	// Variants.
	mux.HandleFunc("GET /api/variants/{id}", s.getVariant)
	mux.HandleFunc("DELETE /api/variants/{id}", s.deleteVariant)
	mux.HandleFunc("PUT /api/variants/{id}/activate", s.activateVariant)
	mux.HandleFunc("GET /api/audio/{id}", s.getAudio)

	// Export.
	mux.HandleFunc("GET /api/projects/{id}/export", s.exportReadiness)
	mux.HandleFunc("POST /api/projects/{id}/export", s.exportConcatenated)
	mux.HandleFunc("POST /api/projects/{id}/export-zip", s.exportArchive)

	// Provider catalog.
	mux.HandleFunc("GET /api/voices", s.listVoices)
	mux.HandleFunc("GET /api/models", s.listModels)

	if s.health != nil {
		s.health.Register(mux)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	if s.metrics != nil {
		return observe.Middleware(s.metrics)(mux)
	}
	return mux
}

// errorBody is the JSON error envelope shared by every failure response.
type errorBody struct {
	Error string `json:"error"`

	// Readiness is attached to export precondition failures so clients can
	// show which chunks are missing audio.
	Readiness *export.Readiness `json:"readiness,omitempty"`
}

// writeError maps a domain error onto an HTTP status and writes the JSON
// envelope. Unknown errors become a generic 500 so internal details never
// leak to clients.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var notReady *export.NotReadyError
	if errors.As(err, &notReady) {
		writeJSON(w, http.StatusConflict, errorBody{
			Error:     notReady.Error(),
			Readiness: &notReady.Readiness,
		})
		return
	}

	var status int
	switch {
	case errors.Is(err, project.ErrProjectNotFound),
		errors.Is(err, project.ErrChunkNotFound),
		errors.Is(err, project.ErrVariantNotFound):
		status = http.StatusNotFound
	case errors.Is(err, project.ErrInvalidName),
		errors.Is(err, project.ErrInvalidSettings),
		errors.Is(err, variants.ErrNoVoiceConfigured),
		errors.Is(err, variants.ErrEmptyChunkText),
		errors.Is(err, variants.ErrNothingToGenerate),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, project.ErrVariantLimit),
		errors.Is(err, project.ErrVariantNotReady):
		status = http.StatusConflict
	case isProviderError(err):
		status = http.StatusBadGateway
	default:
		observe.Logger(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}

	writeJSON(w, status, errorBody{Error: err.Error()})
}

// isProviderError reports whether err originated from an upstream provider.
func isProviderError(err error) bool {
	var ttsErr *tts.ProviderError
	var concatErr *concat.ProviderError
	return errors.As(err, &ttsErr) || errors.As(err, &concatErr)
}

// errBadRequest marks request decoding failures for status mapping.
var errBadRequest = errors.New("bad request")

// decodeJSON decodes the request body into v, wrapping failures so they map
// to 400.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "err", err)
	}
}
