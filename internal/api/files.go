package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"audiovault/internal/filestore"
	"audiovault/internal/ingest"
	"audiovault/internal/logging"
	"audiovault/internal/services"
)

const (
	defaultCoverType     = "image/jpeg"
	thumbnailContentType = "image/webp"
	coverCacheControl    = "private, max-age=3600"
)

// readUpload pulls the multipart "file" field into memory, bounded by the
// configured upload limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (ingest.Upload, error) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	}
	file, header, err := r.FormFile("file")
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ingest.Upload{}, services.Wrap(services.ErrQuotaExceeded, "api", "upload",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), nil)
		}
		return ingest.Upload{}, services.Wrap(services.ErrValidation, "api", "upload", "multipart field \"file\" is required", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ingest.Upload{}, services.Wrap(services.ErrIO, "api", "upload", "read upload", err)
	}

	contentType := header.Header.Get("Content-Type")
	if ingest.BaseType(contentType) == "application/octet-stream" {
		contentType = ""
	}
	return ingest.Upload{
		Owner:       owner(r),
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func (s *Server) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.metrics.observeUpload("audio", 0, err)
		s.writeError(w, r, err)
		return
	}
	result, err := s.pipeline.SaveAudio(r.Context(), up)
	if err != nil {
		s.metrics.observeUpload("audio", 0, err)
		s.writeError(w, r, err)
		return
	}
	s.metrics.observeUpload("audio", result.Size, nil)
	if result.Cover != nil {
		s.metrics.observeUpload("cover", result.Cover.Size, nil)
	}
	s.writeJSON(w, http.StatusOK, UploadAudioResponse{
		Message: "Audio file uploaded successfully",
		File:    result,
	})
}

func (s *Server) handleUploadCover(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.metrics.observeUpload("cover", 0, err)
		s.writeError(w, r, err)
		return
	}
	result, err := s.pipeline.SaveCover(r.Context(), up)
	if err != nil {
		s.metrics.observeUpload("cover", 0, err)
		s.writeError(w, r, err)
		return
	}
	s.metrics.observeUpload("cover", result.Size, nil)
	s.writeJSON(w, http.StatusOK, UploadCoverResponse{
		Message: "Cover image uploaded successfully",
		File:    result,
	})
}

// handleStreamAudio serves an owned track. Whole-file downloads carry a
// Content-Disposition built from the track's tags.
func (s *Server) handleStreamAudio(w http.ResponseWriter, r *http.Request) {
	file, err := s.pipeline.OpenAudio(r.Context(), owner(r), r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	extra := http.Header{}
	if r.Header.Get("Range") == "" {
		extra.Set("Content-Disposition", contentDisposition("attachment", file.DownloadName))
	}
	s.serveFile(w, r, file.Path, file.ContentType, extra)
}

func (s *Server) handleGetCover(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	path, err := s.pipeline.CoverFile(r.Context(), owner(r), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	extra := http.Header{}
	extra.Set("Cache-Control", coverCacheControl)
	s.serveFile(w, r, path, imageContentType(name), extra)
}

func (s *Server) handleListThumbnails(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	thumbs, err := s.pipeline.ListThumbnails(r.Context(), owner(r), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ThumbnailsResponse{Cover: name, Thumbnails: thumbs})
}

func (s *Server) handleGetThumbnail(w http.ResponseWriter, r *http.Request) {
	path, err := s.pipeline.ThumbnailPath(r.Context(), owner(r), r.PathValue("name"), r.PathValue("size"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	extra := http.Header{}
	extra.Set("Cache-Control", coverCacheControl)
	s.serveFile(w, r, path, thumbnailContentType, extra)
}

func (s *Server) handleDeleteAudio(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	cascade, err := boolQuery(r, "cascade", true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.pipeline.DeleteAudio(r.Context(), owner(r), name, cascade)
	s.metrics.observeDeleted(len(result.Removed))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, deleteResponse("Track deleted successfully", name, result))
}

func (s *Server) handleDeleteCover(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	thumbnails, err := boolQuery(r, "thumbnails", true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.pipeline.DeleteCover(r.Context(), owner(r), name, thumbnails)
	s.metrics.observeDeleted(len(result.Removed))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, deleteResponse("Cover deleted successfully", name, result))
}

func (s *Server) handleDeleteAllTracks(w http.ResponseWriter, r *http.Request) {
	report, err := s.pipeline.DeleteAllForOwner(r.Context(), owner(r))
	s.metrics.observeDeleted(report.FilesDeleted)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// serveFile streams path, turning failures into JSON errors only while
// nothing has been written yet.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path, contentType string, extra http.Header) {
	if err := s.streamer.Serve(w, r, path, contentType, extra); err != nil {
		if headerWritten(w) {
			logging.WithContext(r.Context(), s.logger).Warn("stream interrupted",
				logging.String("path", r.URL.Path),
				logging.Error(err),
			)
			return
		}
		s.writeError(w, r, err)
	}
}

func deleteResponse(message, name string, result filestore.DeleteResult) DeleteResponse {
	removed := result.Removed
	if removed == nil {
		removed = []string{}
	}
	return DeleteResponse{
		Message:      message,
		Filename:     name,
		DeletedFiles: removed,
		FailedFiles:  result.Failed,
	}
}

func boolQuery(r *http.Request, key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, services.Wrap(services.ErrValidation, "api", "query", fmt.Sprintf("%s must be true or false", key), nil)
	}
	return value, nil
}

func contentDisposition(disposition, filename string) string {
	if value := mime.FormatMediaType(disposition, map[string]string{"filename": filename}); value != "" {
		return value
	}
	return disposition
}

func imageContentType(name string) string {
	if ct := ingest.BaseType(mime.TypeByExtension(filepath.Ext(name))); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return defaultCoverType
}
