package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"audiovault/internal/logging"
	"audiovault/internal/services"
)

const requestIDHeader = "X-Request-ID"

// statusRecorder remembers the status written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wrote {
		r.status = status
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if !r.wrote {
		r.status = http.StatusOK
		r.wrote = true
	}
	return r.ResponseWriter.Write(p)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// headerWritten reports whether a response has already started on w.
func headerWritten(w http.ResponseWriter) bool {
	if rec, ok := w.(*statusRecorder); ok {
		return rec.wrote
	}
	return false
}

// withRequestID attaches the caller's X-Request-ID, or a fresh one, to the
// request context and echoes it on the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

// instrument records metrics and an access log line per request. The route
// label is the matched mux pattern so path parameters do not explode
// cardinality.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if s.metrics != nil {
			s.metrics.observeRequest(r.Method, route, rec.status, elapsed)
		}
		logging.WithContext(r.Context(), s.logger).Debug("request served",
			logging.String("method", r.Method),
			logging.String("route", route),
			logging.Int("status", rec.status),
			logging.Duration("duration", elapsed),
		)
	})
}

// authenticated verifies the bearer token with the identity service, records
// the owner in the catalog and hands the owner to next through the context.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.writeError(w, r, services.Wrap(services.ErrUnauthorized, "api", "authenticate", "missing bearer token", nil))
			return
		}
		ctx := r.Context()
		user, err := s.identity.Verify(ctx, token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.owners.EnsureOwner(ctx, user.ID, user.Email); err != nil {
			s.writeError(w, r, services.Wrap(services.ErrIO, "api", "authenticate", "record owner", err))
			return
		}
		if user.StorageQuota > 0 {
			if err := s.owners.SetQuota(ctx, user.ID, user.StorageQuota); err != nil {
				s.writeError(w, r, services.Wrap(services.ErrIO, "api", "authenticate", "record quota", err))
				return
			}
		}
		ctx = services.WithBearerToken(ctx, token)
		ctx = services.WithOwner(ctx, user.ID)
		next(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
