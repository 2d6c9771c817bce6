// Package processor re-encodes raster images between formats.
package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/trunov/convo/internal/entities"
	"github.com/trunov/convo/internal/formats"
)

// Default qualities match what browsers use for canvas exports when no
// quality argument is given.
const (
	DefaultJPEGQuality = 92
	DefaultWebPQuality = 80
)

// DefaultMaxPixels caps width*height of a source image. At four bytes per
// pixel a full decode of the limit needs 200MB, and the drawn copy as much
// again.
const DefaultMaxPixels int64 = 50_000_000

type Options struct {
	JPEGQuality int
	WebPQuality float32
	MaxPixels   int64
}

func (o Options) withDefaults() Options {
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		o.JPEGQuality = DefaultJPEGQuality
	}
	if o.WebPQuality <= 0 || o.WebPQuality > 100 {
		o.WebPQuality = DefaultWebPQuality
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = DefaultMaxPixels
	}
	return o
}

// Reencoder decodes an image, draws it unscaled onto a fresh surface and
// encodes that surface in the requested format.
type Reencoder struct {
	encoders  Registry
	maxPixels int64
}

func New(opts Options) *Reencoder {
	opts = opts.withDefaults()
	return &Reencoder{
		encoders:  NewRegistry(opts),
		maxPixels: opts.MaxPixels,
	}
}

func (r *Reencoder) Reencode(ctx context.Context, src entities.SourceFile, target string) (entities.ConvertedArtifact, error) {
	out := entities.ConvertedArtifact{}

	if err := Validate(src.MIMEType, target); err != nil {
		return out, err
	}

	token := formats.Normalize(target)
	enc, ok := r.encoders[token]
	if !ok {
		return out, fmt.Errorf("%w: no raster encoder for %q", ErrEncode, token)
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}

	// The header is enough to size the image; refuse before allocating pixels.
	if err := checkPixels(src.Data, r.maxPixels); err != nil {
		return out, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	img, err := decode(src.Data)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	surface := draw(img, enc.Opaque())

	if err := ctx.Err(); err != nil {
		return out, err
	}

	var buf bytes.Buffer
	if err := enc.Encode(&buf, surface); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrEncode, token, err)
	}

	out.Filename = formats.Rename(src.Name, token)
	out.MIMEType = enc.MIMEType()
	out.Data = buf.Bytes()
	out.Width = surface.Bounds().Dx()
	out.Height = surface.Bounds().Dy()

	return out, nil
}

// Validate checks the declared type and target token without looking at any
// image data.
func Validate(declaredType, target string) error {
	if !strings.HasPrefix(strings.ToLower(declaredType), "image/") {
		return fmt.Errorf("%w: declared type %q is not an image", ErrInvalidInput, declaredType)
	}
	if !formats.IsImageTarget(target) {
		return fmt.Errorf("%w: unknown target format %q", ErrInvalidInput, target)
	}
	return nil
}

// draw allocates a surface the size of img and copies img onto it at the
// origin. Opaque surfaces start black.
func draw(img image.Image, opaque bool) *image.NRGBA {
	if !opaque {
		return imaging.Clone(img)
	}

	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.Black)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
