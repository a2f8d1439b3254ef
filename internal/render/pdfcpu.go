package render

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-stamper/internal/bitmap"
	"github.com/a3tai/mcp-pdf-stamper/internal/geometry"
)

// PDFCanvas collects stamps for the first page of a PDF and applies them in
// one pdfcpu pass. Each draw operation becomes one on-top stamp, so stamp
// order is paint order.
type PDFCanvas struct {
	page   Page
	conf   *model.Configuration
	stamps []*model.Watermark
}

// NewPDFCanvas is the default CanvasFactory.
func NewPDFCanvas(page Page) (Canvas, error) {
	if len(page.Base) == 0 {
		return nil, fmt.Errorf("base document is empty")
	}
	return &PDFCanvas{page: page, conf: newConfiguration()}, nil
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Image stamps img scaled into at.
func (c *PDFCanvas) Image(img *bitmap.Decoded, at geometry.Box) error {
	if img.Width() == 0 {
		return fmt.Errorf("image has no width")
	}

	// pdfcpu only embeds a few formats; re-encoding as PNG keeps alpha for all codecs.
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.Image); err != nil {
		return fmt.Errorf("failed to encode stamp image: %w", err)
	}

	// An image stamp starts at one point per pixel; absolute scaling maps it to the fitted width.
	scale := at.Width / float64(img.Width())
	desc := fmt.Sprintf("position:bl, offset:%s %s, scalefactor:%s abs, rotation:0, opacity:1",
		num(at.X), num(at.Y), num(scale))

	wm, err := api.ImageWatermarkForReader(&buf, desc, true, false, types.POINTS)
	if err != nil {
		return fmt.Errorf("failed to build image stamp: %w", err)
	}
	c.stamps = append(c.stamps, wm)
	return nil
}

// Text stamps a single line of Helvetica.
func (c *PDFCanvas) Text(run TextRun) error {
	points := int(stampSize(run.Size))
	desc := fmt.Sprintf("fontname:%s, points:%d, position:bl, offset:%s %s, scalefactor:1 abs, "+
		"rotation:0, fillcolor:#000000, opacity:1",
		FontName, points, num(run.X), num(run.Y))

	wm, err := api.TextWatermark(run.Text, desc, true, false, types.POINTS)
	if err != nil {
		return fmt.Errorf("failed to build text stamp: %w", err)
	}
	c.stamps = append(c.stamps, wm)
	return nil
}

// Indicator stamps a rasterized ring, with the inner disc when filled.
func (c *PDFCanvas) Indicator(ind Indicator) error {
	img := rasterizeIndicator(ind)
	return c.Image(&bitmap.Decoded{Image: img, Codec: "png", MediaType: "image/png"}, ind.Bounds())
}

// Finish applies all collected stamps to the first page of the base document.
func (c *PDFCanvas) Finish(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(c.stamps) == 0 {
		return append([]byte(nil), c.page.Base...), nil
	}

	var out bytes.Buffer
	stamps := map[int][]*model.Watermark{1: c.stamps}
	if err := api.AddWatermarksSliceMap(bytes.NewReader(c.page.Base), &out, stamps, c.conf); err != nil {
		return nil, fmt.Errorf("failed to apply %d stamp(s): %w", len(c.stamps), err)
	}
	return out.Bytes(), nil
}

// PageSize returns the media box size of the first page of a PDF.
func PageSize(doc []byte) (width, height float64, err error) {
	ctx, err := api.ReadContext(bytes.NewReader(doc), newConfiguration())
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, 0, fmt.Errorf("failed to ensure page count: %w", err)
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read page dimensions: %w", err)
	}
	if len(dims) == 0 {
		return 0, 0, fmt.Errorf("document has no pages")
	}
	return dims[0].Width, dims[0].Height, nil
}

// num formats a coordinate for a pdfcpu stamp description.
func num(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
