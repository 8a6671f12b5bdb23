package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"audiovault/internal/identity"
	"audiovault/internal/ingest"
	"audiovault/internal/logging"
	"audiovault/internal/services"
	"audiovault/internal/stream"
)

// multipartOverhead is the slack allowed on top of the upload limit for
// multipart boundaries and part headers.
const multipartOverhead = 1 << 20

// Authenticator resolves bearer tokens to users. identity.Client implements it.
type Authenticator interface {
	Verify(ctx context.Context, token string) (identity.User, error)
}

// OwnerStore records authenticated users. catalog.Store implements it.
type OwnerStore interface {
	EnsureOwner(ctx context.Context, id, email string) error
	SetQuota(ctx context.Context, id string, quotaBytes int64) error
}

// Options wires a Server.
type Options struct {
	Pipeline *ingest.Pipeline
	Streamer *stream.Streamer
	Identity Authenticator
	Owners   OwnerStore
	Metrics  *Metrics
	// Status reports daemon state for GET /api/status. When nil a minimal
	// payload is served.
	Status         func(context.Context) StatusResponse
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Server routes HTTP requests to the pipeline.
type Server struct {
	pipeline  *ingest.Pipeline
	streamer  *stream.Streamer
	identity  Authenticator
	owners    OwnerStore
	metrics   *Metrics
	status    func(context.Context) StatusResponse
	maxUpload int64
	logger    *slog.Logger
	handler   http.Handler
}

// New validates opts and builds the route table.
func New(opts Options) (*Server, error) {
	if opts.Pipeline == nil || opts.Streamer == nil {
		return nil, errors.New("api: pipeline and streamer are required")
	}
	if opts.Identity == nil || opts.Owners == nil {
		return nil, errors.New("api: identity and owner store are required")
	}
	s := &Server{
		pipeline:  opts.Pipeline,
		streamer:  opts.Streamer,
		identity:  opts.Identity,
		owners:    opts.Owners,
		metrics:   opts.Metrics,
		status:    opts.Status,
		maxUpload: opts.MaxUploadBytes,
		logger:    logging.NewComponentLogger(opts.Logger, "api"),
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.Handle("POST /api/files/audio", s.authenticated(s.handleUploadAudio))
	mux.Handle("GET /api/files/audio/{name}", s.authenticated(s.handleStreamAudio))
	mux.Handle("DELETE /api/files/audio/{name}", s.authenticated(s.handleDeleteAudio))
	mux.Handle("DELETE /api/files/tracks", s.authenticated(s.handleDeleteAllTracks))

	mux.Handle("POST /api/files/cover", s.authenticated(s.handleUploadCover))
	mux.Handle("GET /api/files/cover/{name}", s.authenticated(s.handleGetCover))
	mux.Handle("DELETE /api/files/cover/{name}", s.authenticated(s.handleDeleteCover))
	mux.Handle("GET /api/files/cover/{name}/thumbnails", s.authenticated(s.handleListThumbnails))
	mux.Handle("GET /api/files/cover/{name}/thumbnails/{size}", s.authenticated(s.handleGetThumbnail))

	mux.Handle("GET /api/storage/info", s.authenticated(s.handleStorageInfo))
	mux.Handle("GET /api/storage/check", s.authenticated(s.handleStorageCheck))

	s.handler = withRequestID(s.instrument(mux))
	return s, nil
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics returns the collectors the server reports to.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	payload := StatusResponse{Status: "ok", Running: true}
	if s.status != nil {
		payload = s.status(r.Context())
		if payload.Status == "" {
			payload.Status = "ok"
		}
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// owner returns the authenticated owner; authenticated guarantees presence.
func owner(r *http.Request) string {
	id, _ := services.OwnerFromContext(r.Context())
	return id
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

// writeError renders err with the status its classification maps to. Server
// faults are logged with full detail and reported generically.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	message := err.Error()
	logger := logging.WithContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.Error("request failed", logging.String("path", r.URL.Path), logging.Error(err))
		message = http.StatusText(status)
	} else {
		logger.Info("request rejected",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	requestID, _ := services.RequestIDFromContext(r.Context())
	s.writeJSON(w, status, ErrorResponse{Error: message, RequestID: requestID})
}
