package coverart

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"audiovault/internal/container"
	"audiovault/internal/logging"
	"audiovault/internal/services"
)

// Cover is the embedded image chosen for an audio file.
type Cover struct {
	Data   []byte
	MIME   string
	Source container.PictureSource
}

// artworkKeys are Vorbis comment fields that carry a bare image.
var artworkKeys = []string{"COVERART", "ARTWORK", "COVER"}

// Extractor locates embedded cover art.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor constructs an Extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logging.NewComponentLogger(logger, "coverart")}
}

// Extract parses data and returns its cover, or nil when the file has none or
// cannot be parsed.
func (e *Extractor) Extract(ctx context.Context, data []byte) *Cover {
	c, err := container.Parse(data)
	if err != nil {
		logging.WithContext(ctx, e.logger).Debug("cover extraction skipped", logging.Error(err))
		return nil
	}
	return e.FromContainer(ctx, c)
}

// FromContainer searches c in a fixed order: ID3 pictures, FLAC picture
// blocks, METADATA_BLOCK_PICTURE comments, the MP4 covr atom, then Vorbis
// artwork fields. Every location is an isolated attempt; a location that
// fails to decode falls through to the next.
func (e *Extractor) FromContainer(ctx context.Context, c container.Container) *Cover {
	pictures := c.Pictures()
	raw := c.Tags()

	cover, found, err := services.FirstOK(
		func() services.Result[Cover] { return firstPicture(pictures, container.SourceID3) },
		func() services.Result[Cover] { return firstPicture(pictures, container.SourceFLAC) },
		func() services.Result[Cover] { return blockPicture(raw) },
		func() services.Result[Cover] { return firstPicture(pictures, container.SourceMP4) },
		func() services.Result[Cover] { return artwork(raw) },
	)
	logger := logging.WithContext(ctx, e.logger)
	if err != nil {
		logger.Debug("cover locations skipped", logging.Error(err))
	}
	if !found {
		return nil
	}
	logger.Debug("cover located",
		logging.String("source", string(cover.Source)),
		logging.String("mime", cover.MIME),
		logging.Int("bytes", len(cover.Data)),
	)
	return &cover
}

func firstPicture(pictures []container.Picture, source container.PictureSource) services.Result[Cover] {
	var errs []error
	for _, pic := range pictures {
		if pic.Source != source {
			continue
		}
		res := asImage(pic.Data, source)
		if res.Found {
			return res
		}
		errs = append(errs, res.Err)
	}
	if len(errs) > 0 {
		return services.Failed[Cover](errs[0])
	}
	return services.Missing[Cover]()
}

func blockPicture(raw container.Tags) services.Result[Cover] {
	value, ok := raw.First("METADATA_BLOCK_PICTURE")
	if !ok {
		return services.Missing[Cover]()
	}
	block, err := decodeBase64(value)
	if err != nil {
		return services.Failed[Cover](services.Wrap(services.ErrExtraction, "coverart", "metadata block picture", "base64", err))
	}
	pic, err := container.ParsePictureBlock(block)
	if err != nil {
		return services.Failed[Cover](services.Wrap(services.ErrExtraction, "coverart", "metadata block picture", "picture", err))
	}
	return asImage(pic.Data, container.SourceBlockPicture)
}

func artwork(raw container.Tags) services.Result[Cover] {
	var firstErr error
	for _, key := range artworkKeys {
		value, ok := raw.First(key)
		if !ok {
			continue
		}
		data, err := decodeBase64(value)
		if err != nil {
			data = []byte(value)
		}
		res := asImage(data, container.SourceArtwork)
		if res.Found {
			return res
		}
		if firstErr == nil {
			firstErr = res.Err
		}
	}
	if firstErr != nil {
		return services.Failed[Cover](firstErr)
	}
	return services.Missing[Cover]()
}

func asImage(data []byte, source container.PictureSource) services.Result[Cover] {
	if len(data) == 0 {
		return services.Failed[Cover](services.Wrap(services.ErrExtraction, "coverart", string(source), "empty picture", nil))
	}
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return services.Failed[Cover](services.Wrap(services.ErrExtraction, "coverart", string(source), fmt.Sprintf("not an image (%s)", mime.String()), nil))
	}
	return services.Found(Cover{Data: data, MIME: mime.String(), Source: source})
}

func decodeBase64(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	data, err := base64.StdEncoding.DecodeString(value)
	if err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(value, "="))
}
