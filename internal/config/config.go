package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StorageRoot string `toml:"storage_root"`
	LogDir      string `toml:"log_dir"`
	CatalogPath string `toml:"catalog_path"`
	APIBind     string `toml:"api_bind"`
}

// Upload contains the acceptance rules applied before anything is written.
type Upload struct {
	AudioContentTypes []string `toml:"audio_content_types"`
	AudioExtensions   []string `toml:"audio_extensions"`
	ImageContentTypes []string `toml:"image_content_types"`
	MaxBytes          int64    `toml:"max_bytes"`
}

// Thumbnails contains the derived thumbnail geometry and encoder quality.
type Thumbnails struct {
	Quality int            `toml:"quality"`
	Sizes   map[string]int `toml:"sizes"`
}

// Quota contains per-owner storage ceilings.
type Quota struct {
	// DefaultBytes is assigned to owners the catalog has not seen before.
	DefaultBytes int64 `toml:"default_bytes"`
	// Strict serializes check-and-persist per owner within this process.
	Strict bool `toml:"strict"`
}

// Identity contains the external identity service settings.
type Identity struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Stream contains byte-range streaming settings.
type Stream struct {
	ChunkBytes int `toml:"chunk_bytes"`
}

// Tags contains tag extraction settings.
type Tags struct {
	// ExtendedPrefixes lists free-form key prefixes collected into custom_tags.
	ExtendedPrefixes []string `toml:"extended_prefixes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config encapsulates all configuration values for audiovault.
//
// Configuration sections by subsystem:
//   - Paths: storage root, catalog database, logs, and API bind address
//   - Upload: accepted audio/image types and the request size ceiling
//   - Thumbnails: thumbnail sizes and WebP quality
//   - Quota: default per-owner ceiling and strict mode
//   - Identity: bearer token verification service
//   - Stream: range streaming chunk size
//   - Tags: extended tag prefixes
//   - Logging: log format, level, and rotation
//
// A Config is built once at start-up and treated as read-only afterwards.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Upload     Upload     `toml:"upload"`
	Thumbnails Thumbnails `toml:"thumbnails"`
	Quota      Quota      `toml:"quota"`
	Identity   Identity   `toml:"identity"`
	Stream     Stream     `toml:"stream"`
	Tags       Tags       `toml:"tags"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("audiovault.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the storage layout and the log/catalog directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.AudioDir(),
		c.CoverDir(),
		c.Paths.LogDir,
		filepath.Dir(c.Paths.CatalogPath),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// AudioDir returns the directory holding stored audio assets.
func (c *Config) AudioDir() string {
	return filepath.Join(c.Paths.StorageRoot, "audio")
}

// CoverDir returns the directory holding covers and their thumbnails.
func (c *Config) CoverDir() string {
	return filepath.Join(c.Paths.StorageRoot, "cover")
}

// LockPath returns the daemon lock file inside the storage root.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StorageRoot, ".audiovault.lock")
}

// LogFile returns the rotated log file path, or "" when file logging is off.
func (c *Config) LogFile() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "audiovault.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
