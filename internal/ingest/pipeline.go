package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"audiovault/internal/catalog"
	"audiovault/internal/config"
	"audiovault/internal/container"
	"audiovault/internal/coverart"
	"audiovault/internal/filestore"
	"audiovault/internal/logging"
	"audiovault/internal/quota"
	"audiovault/internal/services"
	"audiovault/internal/tags"
	"audiovault/internal/thumbnail"
)

const defaultAudioType = "audio/mpeg"

// Recorder persists what the pipeline stored. catalog.Store implements it.
type Recorder interface {
	quota.Source
	Record(ctx context.Context, asset catalog.Asset) error
	Get(ctx context.Context, name string) (*catalog.Asset, error)
	ListByOwner(ctx context.Context, owner, kind string) ([]catalog.Asset, error)
	OwnerOf(ctx context.Context, name string) (string, bool, error)
	ClearCover(ctx context.Context, coverName string) error
	Remove(ctx context.Context, name string) (bool, error)
}

// ThumbnailInfo describes one stored thumbnail.
type ThumbnailInfo struct {
	Name       string `json:"filename"`
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	Dimensions string `json:"dimensions"`
}

// CoverResult describes a stored cover and its thumbnails.
type CoverResult struct {
	Name        string                   `json:"filename"`
	Path        string                   `json:"path"`
	Size        int64                    `json:"size"`
	ContentType string                   `json:"content_type"`
	Source      string                   `json:"source,omitempty"`
	Thumbnails  map[string]ThumbnailInfo `json:"thumbnails"`
}

// AudioResult describes a stored audio file and everything derived from it.
type AudioResult struct {
	Name         string            `json:"filename"`
	OriginalName string            `json:"original_filename"`
	Path         string            `json:"path"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type"`
	Cover        *CoverResult      `json:"embedded_cover,omitempty"`
	Metadata     tags.Metadata     `json:"metadata"`
	Quota        *quota.Projection `json:"storage_after_upload,omitempty"`
}

// Pipeline runs uploads through validation, quota admission, storage and
// extraction, and coordinates deletions with the catalog.
type Pipeline struct {
	validator *Validator
	guard     *quota.Guard
	files     *filestore.Store
	covers    *coverart.Extractor
	thumbs    *thumbnail.Generator
	tags      *tags.Extractor
	catalog   Recorder
	maxBytes  int64
	logger    *slog.Logger
}

// New wires a pipeline over files and rec using cfg.
func New(cfg *config.Config, files *filestore.Store, rec Recorder, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		validator: NewValidator(cfg),
		guard:     quota.NewGuard(rec, cfg.Quota.Strict, logger),
		files:     files,
		covers:    coverart.NewExtractor(logger),
		thumbs:    thumbnail.NewGenerator(cfg, logger),
		tags:      tags.NewExtractor(cfg, logger),
		catalog:   rec,
		maxBytes:  cfg.Upload.MaxBytes,
		logger:    logging.NewComponentLogger(logger, "ingest"),
	}
}

// Validator exposes the acceptance rules.
func (p *Pipeline) Validator() *Validator {
	return p.validator
}

// Files exposes the underlying file store.
func (p *Pipeline) Files() *filestore.Store {
	return p.files
}

// CheckUpload evaluates whether owner may store size more bytes.
func (p *Pipeline) CheckUpload(ctx context.Context, owner string, size int64) (quota.Decision, error) {
	return p.guard.Check(ctx, owner, size)
}

// Usage returns owner's current storage usage.
func (p *Pipeline) Usage(ctx context.Context, owner string) (quota.Usage, error) {
	return p.guard.Info(ctx, owner)
}

func (p *Pipeline) prepare(up *Upload) error {
	if err := p.validator.ValidateRequest(*up); err != nil {
		return err
	}
	if p.maxBytes > 0 && int64(len(up.Data)) > p.maxBytes {
		return services.Wrap(services.ErrQuotaExceeded, "ingest", "upload",
			fmt.Sprintf("file size %s exceeds the upload limit of %s", quota.FormatBytes(int64(len(up.Data))), quota.FormatBytes(p.maxBytes)), nil)
	}
	if strings.TrimSpace(up.ContentType) == "" {
		up.ContentType = Sniff(up.Data)
	}
	return nil
}

// SaveAudio validates, admits and stores an audio upload, then extracts its
// cover, thumbnails and metadata. Extraction problems never fail the upload;
// only validation, quota and storage errors do.
func (p *Pipeline) SaveAudio(ctx context.Context, up Upload) (*AudioResult, error) {
	if err := p.prepare(&up); err != nil {
		return nil, err
	}
	if err := p.validator.ValidateAudio(up.ContentType, up.Filename); err != nil {
		return nil, err
	}

	ctx = services.WithOwner(ctx, up.Owner)
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("audio upload started",
		logging.String("original", up.Filename),
		logging.String("content_type", up.ContentType),
		logging.String("sniffed", Sniff(up.Data)),
		logging.Int("bytes", len(up.Data)),
	)

	var result *AudioResult
	decision, err := p.guard.Admit(ctx, up.Owner, int64(len(up.Data)), func(ctx context.Context) error {
		var commitErr error
		result, commitErr = p.storeAudio(ctx, up)
		return commitErr
	})
	if err != nil {
		return nil, err
	}
	result.Quota = decision.After
	logger.Info("audio upload stored",
		logging.String(logging.FieldAsset, result.Name),
		logging.Bool("cover", result.Cover != nil),
		logging.Int("metadata_fields", len(result.Metadata)),
	)
	return result, nil
}

func (p *Pipeline) storeAudio(ctx context.Context, up Upload) (*AudioResult, error) {
	logger := logging.WithContext(ctx, p.logger)
	asset, err := p.files.Save(up.Data, filestore.KindAudio, up.Owner, up.Filename)
	if err != nil {
		return nil, err
	}

	result := &AudioResult{
		Name:         asset.Name,
		OriginalName: up.Filename,
		Path:         asset.Path,
		Size:         asset.Size,
		ContentType:  up.ContentType,
	}

	parsed, parseErr := container.Parse(up.Data)
	if parseErr != nil {
		logger.Warn("container not recognized, skipping extraction", logging.Error(parseErr))
		result.Metadata = tags.Metadata{}
	}

	if cover := p.embeddedCover(ctx, parsed); cover != nil {
		coverName := filestore.CoverName(asset.Name)
		stored, err := p.files.SaveAs(cover.Data, filestore.KindCover, coverName)
		if err != nil {
			logger.Warn("embedded cover not stored", logging.String(logging.FieldAsset, coverName), logging.Error(err))
		} else {
			result.Cover = &CoverResult{
				Name:        stored.Name,
				Path:        stored.Path,
				Size:        stored.Size,
				ContentType: cover.MIME,
				Source:      string(cover.Source),
				Thumbnails:  p.storeThumbnails(ctx, coverName, cover.Data),
			}
		}
	}

	if parsed != nil {
		result.Metadata = p.tags.ExtractParsed(ctx, parsed, up.Data, up.Filename)
	}

	record := catalog.Asset{
		Name:         asset.Name,
		Owner:        up.Owner,
		Kind:         catalog.KindAudio,
		OriginalName: up.Filename,
		ContentType:  up.ContentType,
		Size:         asset.Size,
		Metadata:     result.Metadata,
		CreatedAt:    time.Now(),
	}
	if result.Cover != nil {
		record.CoverName = result.Cover.Name
	}
	if err := p.catalog.Record(ctx, record); err != nil {
		p.files.Delete(asset.Name, filestore.KindAudio, true)
		return nil, services.Wrap(services.ErrIO, "ingest", "record", asset.Name, err)
	}
	return result, nil
}

func (p *Pipeline) embeddedCover(ctx context.Context, parsed container.Container) *coverart.Cover {
	if parsed == nil {
		return nil
	}
	return p.covers.FromContainer(ctx, parsed)
}

// SaveCover validates and stores a cover image upload with its thumbnails.
// Covers are not subject to the storage quota.
func (p *Pipeline) SaveCover(ctx context.Context, up Upload) (*CoverResult, error) {
	if err := p.prepare(&up); err != nil {
		return nil, err
	}
	if err := p.validator.ValidateImage(up.ContentType); err != nil {
		return nil, err
	}

	ctx = services.WithOwner(ctx, up.Owner)
	asset, err := p.files.Save(up.Data, filestore.KindCover, up.Owner, up.Filename)
	if err != nil {
		return nil, err
	}
	if err := p.catalog.Record(ctx, catalog.Asset{
		Name:         asset.Name,
		Owner:        up.Owner,
		Kind:         catalog.KindCover,
		OriginalName: up.Filename,
		ContentType:  BaseType(up.ContentType),
		Size:         asset.Size,
		CreatedAt:    time.Now(),
	}); err != nil {
		p.files.Delete(asset.Name, filestore.KindCover, false)
		return nil, services.Wrap(services.ErrIO, "ingest", "record", asset.Name, err)
	}
	result := &CoverResult{
		Name:        asset.Name,
		Path:        asset.Path,
		Size:        asset.Size,
		ContentType: BaseType(up.ContentType),
		Thumbnails:  p.storeThumbnails(ctx, asset.Name, up.Data),
	}
	logging.WithContext(ctx, p.logger).Info("cover upload stored",
		logging.String(logging.FieldAsset, result.Name),
		logging.Int("thumbnails", len(result.Thumbnails)),
	)
	return result, nil
}

func (p *Pipeline) storeThumbnails(ctx context.Context, coverName string, data []byte) map[string]ThumbnailInfo {
	logger := logging.WithContext(ctx, p.logger)
	out := make(map[string]ThumbnailInfo)
	thumbs, err := p.thumbs.Generate(ctx, data)
	if err != nil {
		logger.Warn("thumbnails skipped", logging.String(logging.FieldAsset, coverName), logging.Error(err))
		return out
	}
	for _, thumb := range thumbs {
		name := filestore.ThumbnailName(coverName, thumb.Size)
		stored, err := p.files.SaveAs(thumb.Data, filestore.KindCover, name)
		if err != nil {
			logger.Warn("thumbnail not stored", logging.String(logging.FieldAsset, name), logging.Error(err))
			continue
		}
		out[thumb.Size] = ThumbnailInfo{
			Name:       stored.Name,
			Path:       stored.Path,
			Size:       stored.Size,
			Dimensions: thumb.Dimensions(),
		}
	}
	return out
}

// AudioFile is a resolved, owner-checked audio asset ready to be served.
type AudioFile struct {
	Name         string
	Path         string
	ContentType  string
	DownloadName string
}

// OpenAudio resolves name for owner. Files that do not exist or belong to
// someone else are both reported as ErrNotFound.
func (p *Pipeline) OpenAudio(ctx context.Context, owner, name string) (*AudioFile, error) {
	if !filestore.OwnedBy(name, owner) {
		return nil, services.Wrap(services.ErrNotFound, "ingest", "open audio", name, nil)
	}
	path, ok := p.files.Path(name, filestore.KindAudio)
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "ingest", "open audio", name, nil)
	}
	asset, err := p.catalog.Get(ctx, name)
	if err != nil {
		logging.WithContext(ctx, p.logger).Warn("catalog lookup failed", logging.String(logging.FieldAsset, name), logging.Error(err))
	}
	file := &AudioFile{Name: name, Path: path, ContentType: audioContentType(asset, name), DownloadName: name}
	if asset != nil {
		file.DownloadName = DownloadName(asset)
	}
	return file, nil
}

// CoverFile resolves a cover or thumbnail owned by owner.
func (p *Pipeline) CoverFile(ctx context.Context, owner, name string) (string, error) {
	owned, err := p.ownsCover(ctx, owner, coverOf(name))
	if err != nil {
		return "", err
	}
	path, ok := p.files.Path(name, filestore.KindCover)
	if !owned || !ok {
		return "", services.Wrap(services.ErrNotFound, "ingest", "open cover", name, nil)
	}
	return path, nil
}

// ThumbnailPath resolves the thumbnail of a cover for a configured size.
func (p *Pipeline) ThumbnailPath(ctx context.Context, owner, coverName, size string) (string, error) {
	size = strings.ToLower(strings.TrimSpace(size))
	known := false
	for _, candidate := range p.files.ThumbnailSizes() {
		if candidate == size {
			known = true
			break
		}
	}
	if !known {
		return "", services.Wrap(services.ErrValidation, "ingest", "thumbnail",
			fmt.Sprintf("invalid size %q, expected one of %s", size, strings.Join(p.files.ThumbnailSizes(), ", ")), nil)
	}
	return p.CoverFile(ctx, owner, filestore.ThumbnailName(coverName, size))
}

// ListThumbnails returns the thumbnails that exist for an owned cover.
func (p *Pipeline) ListThumbnails(ctx context.Context, owner, coverName string) (map[string]ThumbnailInfo, error) {
	owned, err := p.ownsCover(ctx, owner, coverName)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, services.Wrap(services.ErrNotFound, "ingest", "thumbnails", coverName, nil)
	}
	sides := p.thumbs.Sides()
	out := make(map[string]ThumbnailInfo)
	for size, asset := range p.files.Thumbnails(coverName) {
		out[size] = ThumbnailInfo{
			Name:       asset.Name,
			Path:       asset.Path,
			Size:       asset.Size,
			Dimensions: thumbnail.Thumbnail{Side: sides[size]}.Dimensions(),
		}
	}
	return out, nil
}

func (p *Pipeline) ownsCover(ctx context.Context, owner, coverName string) (bool, error) {
	recorded, ok, err := p.catalog.OwnerOf(ctx, coverName)
	if err != nil {
		return false, services.Wrap(services.ErrIO, "ingest", "resolve owner", coverName, err)
	}
	if ok {
		return recorded == owner, nil
	}
	return filestore.CoverOwnedBy(coverName, owner), nil
}

// coverOf maps a thumbnail name back to its cover; other names are returned
// unchanged.
func coverOf(name string) string {
	idx := strings.LastIndex(name, "_thumb_")
	if idx < 0 || !strings.HasSuffix(name, ".webp") {
		return name
	}
	stem := name[:idx]
	if strings.HasSuffix(stem, "_cover") {
		return stem + ".jpg"
	}
	return stem
}

// DownloadName is the filename offered for a full download: "Artist -
// Title.ext" when both tags are known, else the original upload name.
func DownloadName(asset *catalog.Asset) string {
	ext := strings.ToLower(filepath.Ext(asset.Name))
	artist, _ := asset.Metadata["artist"].(string)
	title, _ := asset.Metadata["title"].(string)
	artist, title = sanitizeFilename(artist), sanitizeFilename(title)
	if artist != "" && title != "" {
		return artist + " - " + title + ext
	}
	if original := sanitizeFilename(asset.OriginalName); original != "" {
		return original
	}
	return asset.Name
}

func sanitizeFilename(value string) string {
	value = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return -1
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, value)
	return strings.TrimSpace(value)
}

func audioContentType(asset *catalog.Asset, name string) string {
	if asset != nil {
		if ct := BaseType(asset.ContentType); strings.HasPrefix(ct, "audio/") {
			return ct
		}
	}
	if ct := BaseType(mime.TypeByExtension(filepath.Ext(name))); strings.HasPrefix(ct, "audio/") {
		return ct
	}
	return defaultAudioType
}
