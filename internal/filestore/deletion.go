package filestore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"audiovault/internal/logging"
)

// DeleteFailure records a derived asset that could not be removed.
type DeleteFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// DeleteResult reports what a deletion actually removed.
type DeleteResult struct {
	Deleted bool            `json:"deleted"`
	Removed []string        `json:"removed"`
	Failed  []DeleteFailure `json:"failed,omitempty"`
}

// Delete removes a primary asset and, when cascade is set, its derived
// assets. Audio cascades to its cover and that cover's thumbnails; a cover
// cascades to its thumbnails. Deletion is best-effort and forward-only: a
// failed derived removal is recorded and the remaining ones still run. A
// missing primary reports Deleted=false without error and touches nothing else.
func (s *Store) Delete(name string, kind Kind, cascade bool) DeleteResult {
	var result DeleteResult
	dir, ok := s.dirs[kind]
	if !ok || !validName(name) {
		return result
	}

	removed, err := removeFile(filepath.Join(dir, name))
	if err != nil {
		result.Failed = append(result.Failed, DeleteFailure{Name: name, Error: err.Error()})
		s.logger.Warn("asset removal failed", logging.String(logging.FieldAsset, name), logging.Error(err))
		return result
	}
	if !removed {
		return result
	}
	result.Deleted = true
	result.Removed = append(result.Removed, name)
	s.logger.Info("asset deleted", logging.String(logging.FieldAsset, name), logging.String("kind", string(kind)))

	if !cascade {
		return result
	}

	var derived []string
	switch kind {
	case KindAudio:
		cover := CoverName(name)
		derived = append(derived, cover)
		derived = append(derived, s.thumbnailNames(cover)...)
	case KindCover:
		derived = append(derived, s.thumbnailNames(name)...)
	}

	coverDir := s.dirs[KindCover]
	for _, derivedName := range derived {
		removed, err := removeFile(filepath.Join(coverDir, derivedName))
		if err != nil {
			result.Failed = append(result.Failed, DeleteFailure{Name: derivedName, Error: err.Error()})
			s.logger.Warn("derived asset removal failed",
				logging.String(logging.FieldAsset, derivedName),
				logging.String("parent", name),
				logging.Error(err),
			)
			continue
		}
		if removed {
			result.Removed = append(result.Removed, derivedName)
		}
	}
	return result
}

func (s *Store) thumbnailNames(coverName string) []string {
	names := make([]string, 0, len(s.thumbnailSizes))
	for _, size := range s.thumbnailSizes {
		names = append(names, ThumbnailName(coverName, size))
	}
	return names
}

func removeFile(path string) (bool, error) {
	err := os.Remove(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
