// Package bitmap decodes the data-URI bitmaps carried by signature and image
// fields.
package bitmap

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/a3tai/mcp-pdf-stamper/internal/field"
	"github.com/a3tai/mcp-pdf-stamper/internal/stamperr"
)

// MaxPixels bounds the decoded size of a single bitmap.
const MaxPixels = 40_000_000

// Decoded is a successfully decoded bitmap.
type Decoded struct {
	Image     image.Image
	Codec     string // codec that produced Image
	MediaType string // media type declared by the data URI
	Data      []byte // raw encoded bytes
}

// Width returns the pixel width.
func (d *Decoded) Width() int { return d.Image.Bounds().Dx() }

// Height returns the pixel height.
func (d *Decoded) Height() int { return d.Image.Bounds().Dy() }

type codec struct {
	name   string
	decode func(io.Reader) (image.Image, error)
	config func(io.Reader) (image.Config, error)
}

var codecs = map[string]codec{
	"png":  {"png", png.Decode, png.DecodeConfig},
	"jpeg": {"jpeg", jpeg.Decode, jpeg.DecodeConfig},
	"gif":  {"gif", gif.Decode, gif.DecodeConfig},
	"webp": {"webp", webp.Decode, webp.DecodeConfig},
	"bmp":  {"bmp", bmp.Decode, bmp.DecodeConfig},
	"tiff": {"tiff", tiff.Decode, tiff.DecodeConfig},
}

// codec names tried after the declared one, in order
var fallbackOrder = []string{"png", "jpeg", "webp", "gif", "bmp", "tiff"}

// SupportedCodecs returns the codec names in fallback order.
func SupportedCodecs() []string {
	return append([]string(nil), fallbackOrder...)
}

func codecForMediaType(mediaType string) string {
	switch strings.ToLower(mediaType) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return "jpeg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/bmp", "image/x-ms-bmp":
		return "bmp"
	case "image/tiff":
		return "tiff"
	default:
		return ""
	}
}

// Decode parses a data URI and decodes its bitmap. The codec named by the
// declared media type is tried first, then every other supported codec.
// Failures are reported as DecodeError.
func Decode(uri string) (*Decoded, error) {
	du, err := field.ParseDataURI(uri)
	if err != nil {
		return nil, stamperr.Wrap(stamperr.KindDecode, err, "invalid bitmap data URI")
	}
	return DecodeBytes(du.MediaType, du.Data)
}

// DecodeBytes decodes raw encoded bitmap bytes declared as mediaType.
func DecodeBytes(mediaType string, data []byte) (*Decoded, error) {
	order := make([]string, 0, len(fallbackOrder)+1)
	if primary := codecForMediaType(mediaType); primary != "" {
		order = append(order, primary)
	}
	for _, name := range fallbackOrder {
		if len(order) > 0 && order[0] == name {
			continue
		}
		order = append(order, name)
	}

	var failures []string
	for _, name := range order {
		c := codecs[name]
		cfg, err := c.config(bytes.NewReader(data))
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if cfg.Width <= 0 || cfg.Height <= 0 {
			failures = append(failures, fmt.Sprintf("%s: empty image", name))
			continue
		}
		if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
			return nil, stamperr.Newf(stamperr.KindDecode,
				"bitmap too large: %dx%d pixels (max %d)", cfg.Width, cfg.Height, MaxPixels)
		}

		img, err := c.decode(bytes.NewReader(data))
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		return &Decoded{Image: img, Codec: name, MediaType: mediaType, Data: data}, nil
	}

	return nil, stamperr.New(stamperr.KindDecode, "no supported codec could decode the bitmap").
		WithContext(strings.Join(failures, "; "))
}
