package testsupport

import (
	"path/filepath"
	"testing"

	"audiovault/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StorageRoot = filepath.Join(base, "storage")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CatalogPath = filepath.Join(base, "catalog.db")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Identity.URL = "http://identity.invalid"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithQuota sets the default per-owner quota.
func WithQuota(bytes int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Quota.DefaultBytes = bytes
	}
}

// WithStrictQuota enables per-owner serialization of admissions.
func WithStrictQuota() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Quota.Strict = true
	}
}

// WithIdentityURL points the identity client at url, typically an httptest server.
func WithIdentityURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Identity.URL = url
	}
}

// WithThumbnailSizes replaces the configured thumbnail sizes.
func WithThumbnailSizes(sizes map[string]int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Thumbnails.Sizes = sizes
	}
}

// WithStreamChunk sets the streaming chunk size.
func WithStreamChunk(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Stream.ChunkBytes = n
	}
}

// WithMaxUpload sets the request size ceiling.
func WithMaxUpload(n int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.MaxBytes = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StorageRoot)
}
