package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/samber/lo"

	"audiovault/internal/config"
	"audiovault/internal/logging"
	"audiovault/internal/services"
)

// Kind selects the storage directory for an asset.
type Kind string

const (
	KindAudio Kind = "audio"
	KindCover Kind = "cover"
)

// Asset describes one persisted file.
type Asset struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Store owns every physical path under the storage root.
type Store struct {
	root           string
	dirs           map[Kind]string
	thumbnailSizes []string
	logger         *slog.Logger
}

// New prepares the storage layout described by cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("filestore requires config")
	}
	sizes := lo.Keys(cfg.Thumbnails.Sizes)
	slices.Sort(sizes)
	s := &Store{
		root: cfg.Paths.StorageRoot,
		dirs: map[Kind]string{
			KindAudio: cfg.AudioDir(),
			KindCover: cfg.CoverDir(),
		},
		thumbnailSizes: sizes,
		logger:         logging.NewComponentLogger(logger, "filestore"),
	}
	for _, dir := range s.dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, services.Wrap(services.ErrIO, "filestore", "init", fmt.Sprintf("create %s", dir), err)
		}
	}
	return s, nil
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

// Save persists data under a freshly generated name for owner.
func (s *Store) Save(data []byte, kind Kind, owner, original string) (Asset, error) {
	return s.SaveAs(data, kind, GenerateName(owner, original))
}

// SaveAs persists data under an exact name, used for derived assets whose
// names are computed from their parent.
func (s *Store) SaveAs(data []byte, kind Kind, name string) (Asset, error) {
	dir, ok := s.dirs[kind]
	if !ok {
		return Asset{}, services.Wrap(services.ErrValidation, "filestore", "save", fmt.Sprintf("unknown kind %q", kind), nil)
	}
	if !validName(name) {
		return Asset{}, services.Wrap(services.ErrValidation, "filestore", "save", fmt.Sprintf("invalid name %q", name), nil)
	}
	target := filepath.Join(dir, name)
	if err := writeAtomic(dir, target, data); err != nil {
		return Asset{}, services.Wrap(services.ErrIO, "filestore", "save", name, err)
	}
	s.logger.Debug("asset written",
		logging.String(logging.FieldAsset, name),
		logging.String("kind", string(kind)),
		logging.Int("bytes", len(data)),
	)
	return Asset{Name: name, Path: target, Size: int64(len(data))}, nil
}

// Path resolves name to a physical path when the file exists.
func (s *Store) Path(name string, kind Kind) (string, bool) {
	dir, ok := s.dirs[kind]
	if !ok || !validName(name) {
		return "", false
	}
	target := filepath.Join(dir, name)
	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return target, true
}

// ThumbnailSizes lists the configured thumbnail size labels in sorted order.
func (s *Store) ThumbnailSizes() []string {
	return slices.Clone(s.thumbnailSizes)
}

// Thumbnails returns the thumbnails that currently exist for a cover, keyed by size label.
func (s *Store) Thumbnails(coverName string) map[string]Asset {
	out := make(map[string]Asset)
	for _, size := range s.thumbnailSizes {
		name := ThumbnailName(coverName, size)
		path, ok := s.Path(name, KindCover)
		if !ok {
			continue
		}
		asset := Asset{Name: name, Path: path}
		if info, err := os.Stat(path); err == nil {
			asset.Size = info.Size()
		}
		out[size] = asset
	}
	return out
}

// OwnedAudio lists audio asset names on disk generated for owner.
func (s *Store) OwnedAudio(owner string) ([]string, error) {
	entries, err := os.ReadDir(s.dirs[KindAudio])
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "filestore", "list", owner, err)
	}
	names := lo.FilterMap(entries, func(entry fs.DirEntry, _ int) (string, bool) {
		return entry.Name(), entry.Type().IsRegular() && OwnedBy(entry.Name(), owner)
	})
	return names, nil
}

func writeAtomic(dir, target string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return err
	}
	return nil
}
