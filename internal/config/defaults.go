package config

const (
	defaultConfigPath       = "~/.config/audiovault/config.toml"
	defaultStorageRoot      = "~/.local/share/audiovault/storage"
	defaultLogDir           = "~/.local/share/audiovault/logs"
	defaultCatalogPath      = "~/.local/share/audiovault/catalog.db"
	defaultAPIBind          = "127.0.0.1:7490"
	defaultMaxUploadBytes   = 512 << 20
	defaultThumbnailQuality = 85
	defaultQuotaBytes       = 1 << 30
	defaultIdentityURL      = "http://127.0.0.1:8000"
	defaultIdentityTimeout  = 10
	defaultStreamChunkBytes = 8192
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogMaxSizeMB     = 50
	defaultLogMaxBackups    = 5
	defaultLogMaxAgeDays    = 30
)

var (
	defaultAudioContentTypes = []string{
		"audio/mpeg",
		"audio/mp3",
		"audio/wav",
		"audio/x-wav",
		"audio/flac",
		"audio/x-flac",
		"audio/ogg",
		"audio/aac",
		"audio/mp4",
		"audio/x-m4a",
		"application/ogg",
	}
	defaultAudioExtensions   = []string{".mp3", ".wav", ".flac", ".ogg", ".aac", ".m4a"}
	defaultImageContentTypes = []string{"image/jpeg", "image/png", "image/webp"}
	defaultExtendedPrefixes  = []string{"TXXX:", "----:com.apple.iTunes:"}
)

func defaultThumbnailSizes() map[string]int {
	return map[string]int{
		"small":  150,
		"medium": 300,
		"large":  600,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageRoot: defaultStorageRoot,
			LogDir:      defaultLogDir,
			CatalogPath: defaultCatalogPath,
			APIBind:     defaultAPIBind,
		},
		Upload: Upload{
			AudioContentTypes: append([]string(nil), defaultAudioContentTypes...),
			AudioExtensions:   append([]string(nil), defaultAudioExtensions...),
			ImageContentTypes: append([]string(nil), defaultImageContentTypes...),
			MaxBytes:          defaultMaxUploadBytes,
		},
		Thumbnails: Thumbnails{
			Quality: defaultThumbnailQuality,
			Sizes:   defaultThumbnailSizes(),
		},
		Quota: Quota{
			DefaultBytes: defaultQuotaBytes,
		},
		Identity: Identity{
			URL:            defaultIdentityURL,
			TimeoutSeconds: defaultIdentityTimeout,
		},
		Stream: Stream{
			ChunkBytes: defaultStreamChunkBytes,
		},
		Tags: Tags{
			ExtendedPrefixes: append([]string(nil), defaultExtendedPrefixes...),
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
