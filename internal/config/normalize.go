package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeUpload()
	c.normalizeThumbnails()
	c.normalizeIdentity()
	c.normalizeTags()
	c.normalizeLogging()
	if c.Stream.ChunkBytes <= 0 {
		c.Stream.ChunkBytes = defaultStreamChunkBytes
	}
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("AUDIOVAULT_STORAGE_PATH"); ok && strings.TrimSpace(value) != "" {
		c.Paths.StorageRoot = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.StorageRoot) == "" {
		c.Paths.StorageRoot = defaultStorageRoot
	}
	var err error
	if c.Paths.StorageRoot, err = expandPath(c.Paths.StorageRoot); err != nil {
		return fmt.Errorf("paths.storage_root: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		c.Paths.CatalogPath = defaultCatalogPath
	}
	if c.Paths.CatalogPath, err = expandPath(c.Paths.CatalogPath); err != nil {
		return fmt.Errorf("paths.catalog_path: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeUpload() {
	c.Upload.AudioContentTypes = normalizeList(c.Upload.AudioContentTypes, defaultAudioContentTypes)
	c.Upload.ImageContentTypes = normalizeList(c.Upload.ImageContentTypes, defaultImageContentTypes)
	exts := normalizeList(c.Upload.AudioExtensions, defaultAudioExtensions)
	c.Upload.AudioExtensions = lo.Map(exts, func(ext string, _ int) string {
		if strings.HasPrefix(ext, ".") {
			return ext
		}
		return "." + ext
	})
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = defaultMaxUploadBytes
	}
}

func (c *Config) normalizeThumbnails() {
	if c.Thumbnails.Quality == 0 {
		c.Thumbnails.Quality = defaultThumbnailQuality
	}
	if len(c.Thumbnails.Sizes) == 0 {
		c.Thumbnails.Sizes = defaultThumbnailSizes()
		return
	}
	sizes := make(map[string]int, len(c.Thumbnails.Sizes))
	for name, edge := range c.Thumbnails.Sizes {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		sizes[key] = edge
	}
	c.Thumbnails.Sizes = sizes
}

func (c *Config) normalizeIdentity() {
	if value, ok := os.LookupEnv("AUDIOVAULT_IDENTITY_URL"); ok && strings.TrimSpace(value) != "" {
		c.Identity.URL = value
	}
	c.Identity.URL = strings.TrimRight(strings.TrimSpace(c.Identity.URL), "/")
	if c.Identity.TimeoutSeconds <= 0 {
		c.Identity.TimeoutSeconds = defaultIdentityTimeout
	}
}

func (c *Config) normalizeTags() {
	if c.Tags.ExtendedPrefixes == nil {
		c.Tags.ExtendedPrefixes = append([]string(nil), defaultExtendedPrefixes...)
	}
	c.Tags.ExtendedPrefixes = lo.Uniq(lo.Filter(c.Tags.ExtendedPrefixes, func(prefix string, _ int) bool {
		return strings.TrimSpace(prefix) != ""
	}))
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}

// normalizeList lower-cases, trims, and de-duplicates entries, falling back
// to defaults when nothing usable remains.
func normalizeList(values, fallback []string) []string {
	out := lo.Uniq(lo.FilterMap(values, func(value string, _ int) (string, bool) {
		normalized := strings.ToLower(strings.TrimSpace(value))
		return normalized, normalized != ""
	}))
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
