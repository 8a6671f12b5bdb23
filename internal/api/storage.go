package api

import (
	"net/http"
	"strconv"
	"strings"

	"audiovault/internal/services"
)

func (s *Server) handleStorageInfo(w http.ResponseWriter, r *http.Request) {
	usage, err := s.pipeline.Usage(r.Context(), owner(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, StorageInfoResponse{
		StorageInfo: usage,
		Formatted:   usage.Formatted(),
	})
}

// handleStorageCheck answers whether an upload of ?size=N bytes would fit.
// A denial is still a 200; the decision carries the reason.
func (s *Server) handleStorageCheck(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("size"))
	size, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || size < 0 {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "storage check", "size must be a non-negative integer", nil))
		return
	}
	decision, err := s.pipeline.CheckUpload(r.Context(), owner(r), size)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, decision)
}
