// Package render burns a field set into a fixed-size output page.
//
// Rendering is a synchronous computation over an immutable snapshot of the
// fields and page geometry. A Renderer holds no per-call state and may be used
// from several goroutines at once.
package render

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/a3tai/mcp-pdf-stamper/internal/field"
	"github.com/a3tai/mcp-pdf-stamper/internal/geometry"
	"github.com/a3tai/mcp-pdf-stamper/internal/logging"
	"github.com/a3tai/mcp-pdf-stamper/internal/stamperr"
)

// Request is one render call: fields to burn into a page of the given size,
// in page units (points). Base optionally carries the document to draw on.
type Request struct {
	PageWidth  float64       `json:"pageWidth" yaml:"pageWidth"`
	PageHeight float64       `json:"pageHeight" yaml:"pageHeight"`
	Fields     []field.Field `json:"fields" yaml:"fields"`
	Base       []byte        `json:"base,omitempty" yaml:"base,omitempty"`
}

// Result is the finished page plus a per-field report.
type Result struct {
	Output     []byte           `json:"-"`
	PageWidth  float64          `json:"page_width"`
	PageHeight float64          `json:"page_height"`
	Drawn      int              `json:"drawn"`
	Skipped    int              `json:"skipped"`
	Issues     []stamperr.Issue `json:"issues"`
}

// Options configures a Renderer.
type Options struct {
	// StrictGeometry rejects requests whose fields violate the normalized
	// geometry ranges instead of drawing them wherever they land.
	StrictGeometry bool
	Canvas         CanvasFactory
	Measurer       Measurer
	Now            func() time.Time
	Logger         *log.Logger
}

// Renderer is the render pipeline.
type Renderer struct {
	strict   bool
	canvas   CanvasFactory
	measurer Measurer
	now      func() time.Time
	logger   *log.Logger
}

// NewRenderer creates a renderer. Zero options select the pdfcpu canvas,
// Helvetica metrics, the wall clock and the default logger.
func NewRenderer(opts Options) *Renderer {
	r := &Renderer{
		strict:   opts.StrictGeometry,
		canvas:   opts.Canvas,
		measurer: opts.Measurer,
		now:      opts.Now,
		logger:   opts.Logger,
	}
	if r.canvas == nil {
		r.canvas = NewPDFCanvas
	}
	if r.measurer == nil {
		r.measurer = helvetica{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	return r
}

// Render draws req.Fields in order onto the page and returns the output bytes.
// Problems with a single field are reported in Result.Issues and never abort
// the document; only a structurally invalid request fails the call.
func (r *Renderer) Render(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	logger := logging.FromContext(ctx, r.logger)

	page, err := r.preparePage(req)
	if err != nil {
		return nil, err
	}
	if err := r.validateFields(req.Fields); err != nil {
		return nil, err
	}

	canvas, err := r.canvas(page)
	if err != nil {
		return nil, stamperr.Wrap(stamperr.KindOutput, err, "cannot open output page")
	}

	res := &Result{PageWidth: page.Width, PageHeight: page.Height}
	issues := stamperr.NewCollection()

	for i := range req.Fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := &req.Fields[i]

		if skipUnset(f) {
			res.Skipped++
			continue
		}

		box := geometry.ToPageSpace(geometry.Percent{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height},
			page.Width, page.Height)

		drawn, err := r.drawField(canvas, f, box)
		if err != nil {
			issues.Add(err, f.ID, string(f.Type))
			logger.Warn("field skipped", "field", f.ID, "type", f.Type, "err", err)
			res.Skipped++
			continue
		}
		if drawn {
			res.Drawn++
		} else {
			res.Skipped++
		}
	}

	out, err := canvas.Finish(ctx)
	if err != nil {
		return nil, stamperr.Wrap(stamperr.KindOutput, err, "cannot write output page")
	}

	res.Output = out
	res.Issues = issues.Issues()
	logger.Debug("render finished",
		"fields", len(req.Fields), "drawn", res.Drawn, "skipped", res.Skipped,
		"bytes", len(out), "elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// skipUnset reports whether f has nothing to draw. Choice fields always show
// their selection, text fields fall back to a placeholder and date fields to
// the current date, so only bitmap and unrecognized fields are skipped.
func skipUnset(f *field.Field) bool {
	if f.Filled() {
		return false
	}
	switch f.Type {
	case field.TypeChoice, field.TypeText, field.TypeDate:
		return false
	default:
		return true
	}
}

func (r *Renderer) preparePage(req Request) (Page, error) {
	page := Page{Width: req.PageWidth, Height: req.PageHeight, Base: req.Base}

	if len(page.Base) > 0 && page.Width == 0 && page.Height == 0 {
		w, h, err := PageSize(page.Base)
		if err != nil {
			return Page{}, stamperr.Wrap(stamperr.KindInvalidRequest, err, "cannot read base document")
		}
		page.Width, page.Height = w, h
	}

	if !validDimension(page.Width) || !validDimension(page.Height) {
		return Page{}, stamperr.Newf(stamperr.KindInvalidRequest,
			"page dimensions must be positive, got %gx%g", page.Width, page.Height)
	}

	if len(page.Base) == 0 {
		page.Base = BlankPage(page.Width, page.Height)
	}
	return page, nil
}

func (r *Renderer) validateFields(fields []field.Field) error {
	if fields == nil {
		return stamperr.New(stamperr.KindInvalidRequest, "field list is required")
	}
	if !r.strict {
		return nil
	}
	for i := range fields {
		if err := fields[i].ValidateGeometry(); err != nil {
			return stamperr.Wrap(stamperr.KindValidation, err, "field geometry out of range").
				WithField(fields[i].ID, string(fields[i].Type))
		}
	}
	return nil
}

func validDimension(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// String summarizes the result for logs and tool responses.
func (res *Result) String() string {
	return fmt.Sprintf("page %gx%g pt, %d drawn, %d skipped, %d issue(s), %d bytes",
		res.PageWidth, res.PageHeight, res.Drawn, res.Skipped, len(res.Issues), len(res.Output))
}
