package processor

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// Encoder writes a drawn surface in one target format.
type Encoder interface {
	MIMEType() string
	// Opaque encoders have no alpha channel; the surface is flattened onto
	// black before encoding.
	Opaque() bool
	Encode(w io.Writer, img image.Image) error
}

type imagingEncoder struct {
	format imaging.Format
	mime   string
	opaque bool
	opts   []imaging.EncodeOption
}

func (e imagingEncoder) MIMEType() string { return e.mime }
func (e imagingEncoder) Opaque() bool     { return e.opaque }

func (e imagingEncoder) Encode(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, e.format, e.opts...)
}

type webpEncoder struct {
	quality float32
}

func (webpEncoder) MIMEType() string { return "image/webp" }
func (webpEncoder) Opaque() bool     { return false }

func (e webpEncoder) Encode(w io.Writer, img image.Image) error {
	return webp.Encode(w, img, &webp.Options{
		Lossless: false,
		Quality:  e.quality,
	})
}

// Registry maps target tokens to encoders.
type Registry map[string]Encoder

func NewRegistry(opts Options) Registry {
	jpeg := imagingEncoder{
		format: imaging.JPEG,
		mime:   "image/jpeg",
		opaque: true,
		opts:   []imaging.EncodeOption{imaging.JPEGQuality(opts.JPEGQuality)},
	}

	return Registry{
		"png":  imagingEncoder{format: imaging.PNG, mime: "image/png"},
		"jpg":  jpeg,
		"jpeg": jpeg,
		"gif":  imagingEncoder{format: imaging.GIF, mime: "image/gif"},
		"bmp":  imagingEncoder{format: imaging.BMP, mime: "image/bmp", opaque: true},
		"tiff": imagingEncoder{format: imaging.TIFF, mime: "image/tiff"},
		"webp": webpEncoder{quality: opts.WebPQuality},
	}
}

func isWebP(data []byte) bool {
	return mimetype.Detect(data).Is("image/webp")
}

// checkPixels reads only the image header and fails when the image has more
// than maxPixels pixels.
func checkPixels(data []byte, maxPixels int64) error {
	var (
		cfg image.Config
		err error
	)
	if isWebP(data) {
		cfg, err = webp.DecodeConfig(bytes.NewReader(data))
	} else {
		cfg, _, err = image.DecodeConfig(bytes.NewReader(data))
	}
	if err != nil {
		return fmt.Errorf("error reading image header: %w", err)
	}

	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
		return fmt.Errorf("image is %dx%d (%d pixels), limit is %d", cfg.Width, cfg.Height, pixels, maxPixels)
	}
	return nil
}

// decode sniffs the payload and decodes it. WebP goes through chai2010/webp,
// everything else through the image format registry imaging pulls in.
func decode(data []byte) (image.Image, error) {
	if isWebP(data) {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("error decoding webp: %w", err)
		}
		return img, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("error decoding image: %w", err)
	}
	return img, nil
}
