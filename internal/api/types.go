package api

import (
	"audiovault/internal/filestore"
	"audiovault/internal/ingest"
	"audiovault/internal/quota"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// UploadAudioResponse wraps a stored audio file.
type UploadAudioResponse struct {
	Message string              `json:"message"`
	File    *ingest.AudioResult `json:"file"`
}

// UploadCoverResponse wraps a stored cover.
type UploadCoverResponse struct {
	Message string              `json:"message"`
	File    *ingest.CoverResult `json:"file"`
}

// DeleteResponse reports a single-asset deletion.
type DeleteResponse struct {
	Message      string                    `json:"message"`
	Filename     string                    `json:"filename"`
	DeletedFiles []string                  `json:"deleted_files"`
	FailedFiles  []filestore.DeleteFailure `json:"failed_files,omitempty"`
}

// ThumbnailsResponse lists the thumbnails that exist for a cover.
type ThumbnailsResponse struct {
	Cover      string                          `json:"cover_filename"`
	Thumbnails map[string]ingest.ThumbnailInfo `json:"thumbnails"`
}

// StorageInfoResponse carries raw and human-readable usage.
type StorageInfoResponse struct {
	StorageInfo quota.Usage          `json:"storage_info"`
	Formatted   quota.FormattedUsage `json:"formatted"`
}

// StatusResponse is the unauthenticated health payload.
type StatusResponse struct {
	Status       string `json:"status"`
	Running      bool   `json:"running"`
	PID          int    `json:"pid,omitempty"`
	CatalogPath  string `json:"catalog_path,omitempty"`
	StorageRoot  string `json:"storage_root,omitempty"`
	LockFilePath string `json:"lock_file_path,omitempty"`
	StrictQuota  bool   `json:"strict_quota"`
}
