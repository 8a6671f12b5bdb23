package tags

import (
	"bytes"
	"context"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	"github.com/samber/lo"

	"audiovault/internal/config"
	"audiovault/internal/container"
	"audiovault/internal/logging"
	"audiovault/internal/services"
)

// Metadata is the extracted document: logical field names mapped to
// scalars, plus the "discogs" and "custom_tags" sub-maps when present.
type Metadata map[string]any

// Extractor maps container tags onto Metadata.
type Extractor struct {
	prefixes []string
	logger   *slog.Logger
}

// NewExtractor builds an extractor using the configured custom-tag prefixes.
func NewExtractor(cfg *config.Config, logger *slog.Logger) *Extractor {
	var prefixes []string
	if cfg != nil {
		prefixes = slices.Clone(cfg.Tags.ExtendedPrefixes)
	}
	return &Extractor{
		prefixes: prefixes,
		logger:   logging.NewComponentLogger(logger, "tags"),
	}
}

// Extract decodes data and returns its metadata. It never fails: an
// unrecognized container yields an empty document and individual fields
// that cannot be read are left out.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) Metadata {
	logger := logging.WithContext(ctx, e.logger).With(logging.String("file", filename))
	c, err := container.Parse(data)
	if err != nil {
		logger.Warn("metadata extraction skipped", logging.Error(err))
		return Metadata{}
	}
	return e.ExtractParsed(ctx, c, data, filename)
}

// ExtractParsed is Extract for a container the caller already parsed from
// data. data is still needed for the audio checksum.
func (e *Extractor) ExtractParsed(ctx context.Context, c container.Container, data []byte, filename string) Metadata {
	logger := logging.WithContext(ctx, e.logger).With(logging.String("file", filename))
	md := e.FromContainer(c, filename, int64(len(data)))
	if d, ok := md["duration"].(float64); ok && d == 0 {
		logger.Warn("could not determine duration")
	}

	sum := services.Attempt(func() (string, bool, error) {
		s, err := tag.Sum(bytes.NewReader(data))
		return s, s != "", err
	})
	switch {
	case sum.Err != nil:
		logger.Debug("audio checksum unavailable", logging.Error(sum.Err))
	case sum.Found:
		md["audio_checksum"] = sum.Value
	}

	discogs, _ := md["discogs"].(map[string]any)
	logger.Info("metadata extracted",
		logging.String("container", string(c.Kind())),
		logging.Any("duration", md["duration"]),
		logging.Any("bpm", lo.ValueOr(map[string]any(md), "bpm", any("n/a"))),
		logging.Any("key", lo.ValueOr(map[string]any(md), "key", any("n/a"))),
		logging.Int("discogs_tags", len(discogs)),
	)
	return md
}

// FromContainer builds the metadata document for a parsed container.
func (e *Extractor) FromContainer(c container.Container, filename string, size int64) Metadata {
	raw := c.Tags()
	md := Metadata{"duration": Duration(c.Stream())}

	maps.Copy(md, lookup(raw, standardFields, false))
	maps.Copy(md, lookup(raw, extendedFields, true))
	maps.Copy(md, technical(c.Stream(), filename, size))
	if discogs := lookup(raw, discogsFields, false); len(discogs) > 0 {
		md["discogs"] = map[string]any(discogs)
	}
	if custom := e.customTags(raw); len(custom) > 0 {
		md["custom_tags"] = custom
	}
	return md
}

// Duration returns the stream length in seconds: the explicit length when the
// container reports one, else total samples over sample rate, else 0.
func Duration(info container.StreamInfo) float64 {
	if info.Length > 0 {
		return info.Length.Seconds()
	}
	if info.TotalSamples > 0 && info.SampleRate > 0 {
		return float64(info.TotalSamples) / float64(info.SampleRate)
	}
	return 0
}

func lookup(raw container.Tags, fields []field, coerce bool) Metadata {
	out := Metadata{}
	for _, f := range fields {
		value, ok := firstCandidate(raw, f.candidates)
		if !ok {
			continue
		}
		if coerce && numericFields[f.name] {
			out[f.name] = Coerce(value)
			continue
		}
		out[f.name] = value
	}
	return out
}

func firstCandidate(raw container.Tags, candidates []string) (string, bool) {
	for _, key := range candidates {
		if v, ok := raw.First(key); ok {
			return v, true
		}
	}
	return "", false
}

// Coerce keeps digits and dots from value and parses the result as a float
// when a dot remains, otherwise as an integer. Values that do not parse are
// returned unchanged.
func Coerce(value string) any {
	numeric := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, value)
	if numeric == "" {
		return value
	}
	if strings.Contains(numeric, ".") {
		f, err := strconv.ParseFloat(numeric, 64)
		if err != nil {
			return value
		}
		return f
	}
	n, err := strconv.Atoi(numeric)
	if err != nil {
		return value
	}
	return n
}

func (e *Extractor) customTags(raw container.Tags) map[string]any {
	out := map[string]any{}
	keys := lo.Keys(map[string][]string(raw))
	slices.Sort(keys)
	for _, key := range keys {
		for _, prefix := range e.prefixes {
			name, ok := strings.CutPrefix(key, prefix)
			if !ok || strings.TrimSpace(name) == "" {
				continue
			}
			upper := strings.ToUpper(name)
			if lo.SomeBy(vendorPrefixes, func(p string) bool { return strings.HasPrefix(upper, p) }) {
				break
			}
			value, found := raw.First(key)
			lower := strings.ToLower(name)
			if _, taken := out[lower]; found && !taken {
				out[lower] = value
			}
			break
		}
	}
	return out
}

func technical(info container.StreamInfo, filename string, size int64) Metadata {
	md := Metadata{
		"format":    strings.ToUpper(strings.TrimPrefix(filepath.Ext(filename), ".")),
		"file_size": size,
	}
	setPositive := func(key string, v int) {
		if v > 0 {
			md[key] = v
		}
	}
	setPositive("bitrate", info.Bitrate)
	setPositive("sample_rate", info.SampleRate)
	setPositive("channels", info.Channels)
	setPositive("bits_per_sample", info.BitsPerSample)
	if info.Codec != "" {
		md["codec"] = info.Codec
	}
	if info.Mode != "" {
		md["mode"] = info.Mode
	}
	if info.Encoder != "" {
		md["encoder"] = info.Encoder
	}
	return md
}
