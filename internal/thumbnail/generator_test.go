package thumbnail_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/webp"

	"audiovault/internal/logging"
	"audiovault/internal/services"
	"audiovault/internal/testsupport"
	"audiovault/internal/thumbnail"
)

func TestGenerateExactDimensions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gen := thumbnail.NewGenerator(cfg, logging.NewNop())

	for _, src := range [][]byte{
		testsupport.JPEG(t, 800, 450, color.RGBA{R: 30, G: 90, B: 160, A: 255}),
		testsupport.PNG(t, 90, 400, color.NRGBA{R: 255, A: 128}),
		testsupport.PNG(t, 20, 20, color.Black),
	} {
		thumbs, err := gen.Generate(context.Background(), src)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(thumbs) != len(cfg.Thumbnails.Sizes) {
			t.Fatalf("expected %d thumbnails, got %d", len(cfg.Thumbnails.Sizes), len(thumbs))
		}
		for _, th := range thumbs {
			want := cfg.Thumbnails.Sizes[th.Size]
			img, err := webp.Decode(bytes.NewReader(th.Data))
			if err != nil {
				t.Fatalf("decode %s: %v", th.Size, err)
			}
			if b := img.Bounds(); b.Dx() != want || b.Dy() != want {
				t.Fatalf("%s: got %dx%d want %dx%d", th.Size, b.Dx(), b.Dy(), want, want)
			}
			if th.Side != want || th.Dimensions() != fmt.Sprintf("%dx%d", want, want) {
				t.Fatalf("unexpected dimensions %s", th.Dimensions())
			}
		}
	}
}

func TestFitLetterboxesWithoutUpscaling(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 100, 50))
	for y := range 50 {
		for x := range 100 {
			src.Set(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	out := thumbnail.Fit(src, 300)
	if out.Bounds().Dx() != 300 || out.Bounds().Dy() != 300 {
		t.Fatalf("unexpected bounds %v", out.Bounds())
	}
	if c := out.RGBAAt(150, 150); c.R != 255 || c.G != 0 {
		t.Fatalf("centre should be the source colour, got %v", c)
	}
	if c := out.RGBAAt(150, 100); c != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("above a 50px-tall source must be white, got %v", c)
	}
	if c := out.RGBAAt(20, 150); c != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("left of a 100px-wide source must be white, got %v", c)
	}
}

func TestFitFlattensTransparency(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	out := thumbnail.Fit(src, 10)
	if c := out.RGBAAt(5, 5); c != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("transparent pixels should flatten to white, got %v", c)
	}
}

func TestFitShrinksToBox(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1200, 600))
	for y := range 600 {
		for x := range 1200 {
			src.Set(x, y, color.NRGBA{B: 255, A: 255})
		}
	}
	out := thumbnail.Fit(src, 150)
	if c := out.RGBAAt(75, 75); c.B < 250 || c.R > 5 {
		t.Fatalf("centre should be blue, got %v", c)
	}
	if c := out.RGBAAt(75, 10); c != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("letterbox band should be white, got %v", c)
	}
}

func TestGenerateRejectsUndecodable(t *testing.T) {
	gen := thumbnail.NewGenerator(testsupport.NewConfig(t), logging.NewNop())
	thumbs, err := gen.Generate(context.Background(), []byte("not an image"))
	if !errors.Is(err, services.ErrExtraction) || len(thumbs) != 0 {
		t.Fatalf("expected extraction error, got %v (%d thumbs)", err, len(thumbs))
	}
}
