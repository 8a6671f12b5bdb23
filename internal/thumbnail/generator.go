package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"maps"
	"math"
	"slices"

	"github.com/chai2010/webp"
	"github.com/samber/lo"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"audiovault/internal/config"
	"audiovault/internal/logging"
	"audiovault/internal/services"
)

// Thumbnail is one encoded WebP rendition.
type Thumbnail struct {
	Size string
	Side int
	Data []byte
}

// Dimensions renders the square size as "WxH".
func (t Thumbnail) Dimensions() string {
	return fmt.Sprintf("%dx%d", t.Side, t.Side)
}

// Generator renders square WebP thumbnails for every configured size.
type Generator struct {
	sizes   map[string]int
	names   []string
	quality float32
	logger  *slog.Logger
}

// NewGenerator builds a generator from the thumbnail configuration.
func NewGenerator(cfg *config.Config, logger *slog.Logger) *Generator {
	sizes := map[string]int{}
	quality := 85
	if cfg != nil {
		sizes = cfg.Thumbnails.Sizes
		quality = cfg.Thumbnails.Quality
	}
	names := lo.Keys(sizes)
	slices.Sort(names)
	return &Generator{
		sizes:   sizes,
		names:   names,
		quality: float32(quality),
		logger:  logging.NewComponentLogger(logger, "thumbnail"),
	}
}

// Sides returns the configured box side per size label.
func (g *Generator) Sides() map[string]int {
	return maps.Clone(g.sizes)
}

// Generate decodes src once and renders each size independently. A size that
// fails is logged and left out; the error is non-nil only when src cannot be
// decoded at all.
func (g *Generator) Generate(ctx context.Context, src []byte) ([]Thumbnail, error) {
	logger := logging.WithContext(ctx, g.logger)
	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		logger.Warn("cover decode failed", logging.Error(err))
		return nil, services.Wrap(services.ErrExtraction, "thumbnail", "decode", "", err)
	}

	out := make([]Thumbnail, 0, len(g.names))
	for _, name := range g.names {
		side := g.sizes[name]
		data, err := g.render(img, side)
		if err != nil {
			logger.Warn("thumbnail skipped",
				logging.String("size", name),
				logging.Int("side", side),
				logging.Error(err),
			)
			continue
		}
		out = append(out, Thumbnail{Size: name, Side: side, Data: data})
	}
	logger.Debug("thumbnails rendered",
		logging.String("source_format", format),
		logging.Int("count", len(out)),
	)
	return out, nil
}

func (g *Generator) render(src image.Image, side int) ([]byte, error) {
	if side <= 0 {
		return nil, fmt.Errorf("invalid side %d", side)
	}
	canvas := Fit(src, side)
	var buf bytes.Buffer
	if err := webp.Encode(&buf, canvas, &webp.Options{Quality: g.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Fit flattens src onto white, shrinks it to fit a side×side box while
// keeping its aspect ratio, and centres it on a white side×side canvas.
// Images already inside the box are not enlarged.
func Fit(src image.Image, side int) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return canvas
	}
	scale := math.Min(1, math.Min(float64(side)/float64(w), float64(side)/float64(h)))
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	ox, oy := (side-nw)/2, (side-nh)/2
	target := image.Rect(ox, oy, ox+nw, oy+nh)

	if nw == w && nh == h {
		xdraw.Draw(canvas, target, src, b.Min, xdraw.Over)
		return canvas
	}
	xdraw.CatmullRom.Scale(canvas, target, src, b, xdraw.Over, nil)
	return canvas
}
