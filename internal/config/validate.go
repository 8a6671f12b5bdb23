package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateThumbnails(); err != nil {
		return err
	}
	if err := c.validateQuota(); err != nil {
		return err
	}
	if err := c.validateIdentity(); err != nil {
		return err
	}
	if c.Stream.ChunkBytes <= 0 {
		return errors.New("stream.chunk_bytes must be positive")
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload.max_bytes must be positive")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StorageRoot) == "" {
		return errors.New("paths.storage_root must be set")
	}
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		return errors.New("paths.catalog_path must be set")
	}
	return nil
}

func (c *Config) validateThumbnails() error {
	if c.Thumbnails.Quality < 1 || c.Thumbnails.Quality > 100 {
		return errors.New("thumbnails.quality must be between 1 and 100")
	}
	if len(c.Thumbnails.Sizes) == 0 {
		return errors.New("thumbnails.sizes must declare at least one size")
	}
	for name, edge := range c.Thumbnails.Sizes {
		if edge <= 0 {
			return fmt.Errorf("thumbnails.sizes.%s must be positive", name)
		}
		if strings.ContainsAny(name, `/\.`) {
			return fmt.Errorf("thumbnails.sizes.%s is not a valid size name", name)
		}
	}
	return nil
}

func (c *Config) validateQuota() error {
	if c.Quota.DefaultBytes < 0 {
		return errors.New("quota.default_bytes must not be negative")
	}
	return nil
}

func (c *Config) validateIdentity() error {
	if c.Identity.URL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Identity.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("identity.url must be an absolute URL, got %q", c.Identity.URL)
	}
	if c.Identity.TimeoutSeconds <= 0 {
		return errors.New("identity.timeout_seconds must be positive")
	}
	return nil
}
