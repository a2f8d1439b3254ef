package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-stamper/internal/bitmap"
	"github.com/a3tai/mcp-pdf-stamper/internal/field"
	"github.com/a3tai/mcp-pdf-stamper/internal/geometry"
	"github.com/a3tai/mcp-pdf-stamper/internal/logging"
	"github.com/a3tai/mcp-pdf-stamper/internal/stamperr"
)

// recorder is a Canvas that records operations as text lines.
type recorder struct {
	page Page
	ops  []string
	imgs []geometry.Box
	runs []TextRun
	inds []Indicator
}

func (r *recorder) Image(img *bitmap.Decoded, at geometry.Box) error {
	r.imgs = append(r.imgs, at)
	r.ops = append(r.ops, fmt.Sprintf("image %dx%d", img.Width(), img.Height()))
	return nil
}

func (r *recorder) Text(run TextRun) error {
	r.runs = append(r.runs, run)
	r.ops = append(r.ops, "text "+run.Text)
	return nil
}

func (r *recorder) Indicator(ind Indicator) error {
	r.inds = append(r.inds, ind)
	r.ops = append(r.ops, fmt.Sprintf("indicator filled=%t", ind.Filled))
	return nil
}

func (r *recorder) Finish(context.Context) ([]byte, error) {
	return []byte(strings.Join(r.ops, "\n")), nil
}

// fixedWidth measures every rune as half the font size.
type fixedWidth struct{}

func (fixedWidth) TextWidth(text string, size float64) float64 {
	return float64(len([]rune(text))) * size / 2
}

func newTestRenderer(strict bool) (*Renderer, *recorder) {
	rec := &recorder{}
	r := NewRenderer(Options{
		StrictGeometry: strict,
		Canvas: func(p Page) (Canvas, error) {
			rec.page = p
			return rec, nil
		},
		Measurer: fixedWidth{},
		Now:      func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) },
		Logger:   logging.Discard(),
	})
	return r, rec
}

func pngURI(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return field.EncodeDataURI("image/png", buf.Bytes())
}

func strPtr(s string) *string { return &s }

func TestRender_EmptyTextDrawsPlaceholder(t *testing.T) {
	r, rec := newTestRenderer(true)

	res, err := r.Render(context.Background(), Request{
		PageWidth:  600,
		PageHeight: 800,
		Fields: []field.Field{
			{ID: "a", Type: field.TypeText, X: 10, Y: 10, Width: 20, Height: 5},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "text Text", string(res.Output))
	assert.Equal(t, 1, res.Drawn)

	// box: x=60, y=800-80-40=680, h=40; size=min(24,14)=14
	require.Len(t, rec.runs, 1)
	assert.InDelta(t, 62, rec.runs[0].X, 1e-9)
	assert.InDelta(t, 680+(40-14)/2.0, rec.runs[0].Y, 1e-9)
	assert.InDelta(t, 14, rec.runs[0].Size, 1e-9)
}

func TestRender_UnsetBitmapProducesNoOperations(t *testing.T) {
	r, _ := newTestRenderer(true)

	res, err := r.Render(context.Background(), Request{
		PageWidth:  600,
		PageHeight: 800,
		Fields: []field.Field{
			{ID: "sig", Type: field.TypeSignature, X: 0, Y: 0, Width: 25, Height: 10},
			{ID: "img", Type: field.TypeImage, X: 50, Y: 0, Width: 25, Height: 20},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Output)
	assert.Equal(t, 0, res.Drawn)
	assert.Equal(t, 2, res.Skipped)
	assert.Empty(t, res.Issues)
}

func TestRender_PreservesFieldOrder(t *testing.T) {
	r, rec := newTestRenderer(true)

	_, err := r.Render(context.Background(), Request{
		PageWidth:  600,
		PageHeight: 800,
		Fields: []field.Field{
			{ID: "1", Type: field.TypeText, X: 0, Y: 0, Width: 50, Height: 5, Value: strPtr("first")},
			{ID: "2", Type: field.TypeImage, X: 0, Y: 10, Width: 25, Height: 20, Value: strPtr(pngURI(t, 4, 2))},
			{ID: "3", Type: field.TypeText, X: 0, Y: 40, Width: 50, Height: 5, Value: strPtr("third")},
		},
	})
	require.NoError(t, err)

	want := []string{"text first", "image 4x2", "text third"}
	if diff := cmp.Diff(want, rec.ops); diff != "" {
		t.Errorf("operations mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_BitmapIsAspectFitted(t *testing.T) {
	r, rec := newTestRenderer(true)

	// 200x100 image into a 100x100 pt box
	_, err := r.Render(context.Background(), Request{
		PageWidth:  1000,
		PageHeight: 1000,
		Fields: []field.Field{
			{ID: "img", Type: field.TypeImage, X: 10, Y: 10, Width: 10, Height: 10, Value: strPtr(pngURI(t, 200, 100))},
		},
	})
	require.NoError(t, err)
	require.Len(t, rec.imgs, 1)

	got := rec.imgs[0]
	assert.InDelta(t, 100, got.X, 1e-9)
	assert.InDelta(t, 800+25, got.Y, 1e-9)
	assert.InDelta(t, 100, got.Width, 1e-9)
	assert.InDelta(t, 50, got.Height, 1e-9)
}

func TestRender_BadBitmapIsSkippedWithIssue(t *testing.T) {
	r, rec := newTestRenderer(true)

	res, err := r.Render(context.Background(), Request{
		PageWidth:  600,
		PageHeight: 800,
		Fields: []field.Field{
			{ID: "bad", Type: field.TypeSignature, X: 0, Y: 0, Width: 25, Height: 10, Value: strPtr("data:image/png;base64,AAAA")},
			{ID: "ok", Type: field.TypeText, X: 0, Y: 20, Width: 25, Height: 5, Value: strPtr("hello")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"text hello"}, rec.ops)
	assert.Equal(t, 1, res.Drawn)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "bad", res.Issues[0].FieldID)
	assert.Equal(t, "DECODE", res.Issues[0].Kind)
}

func TestRender_StrictGeometryRejectsRequest(t *testing.T) {
	r, rec := newTestRenderer(true)

	_, err := r.Render(context.Background(), Request{
		PageWidth:  600,
		PageHeight: 800,
		Fields: []field.Field{
			{ID: "ok", Type: field.TypeText, X: 0, Y: 0, Width: 10, Height: 5},
			{ID: "wide", Type: field.TypeText, X: 95, Y: 0, Width: 10, Height: 5},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, stamperr.ErrValidation))
	assert.Empty(t, rec.ops)

	var se *stamperr.StampError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "wide", se.FieldID)
}

func TestRender_LenientGeometryDrawsAsIs(t *testing.T) {
	r, rec := newTestRenderer(false)

	res, err := r.Render(context.Background(), Request{
		PageWidth:  600,
		PageHeight: 800,
		Fields: []field.Field{
			{ID: "wide", Type: field.TypeText, X: 95, Y: 0, Width: 10, Height: 5, Value: strPtr("x")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Drawn)
	assert.InDelta(t, 570+textPadding, rec.runs[0].X, 1e-9)
}

func TestRender_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "zero width", req: Request{PageWidth: 0, PageHeight: 800, Fields: []field.Field{}}},
		{name: "negative height", req: Request{PageWidth: 600, PageHeight: -1, Fields: []field.Field{}}},
		{name: "missing fields", req: Request{PageWidth: 600, PageHeight: 800}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRenderer(true)
			_, err := r.Render(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, stamperr.ErrInvalidRequest))
		})
	}
}

func TestRender_EmptyFieldListIsValid(t *testing.T) {
	r, rec := newTestRenderer(true)

	res, err := r.Render(context.Background(), Request{PageWidth: 600, PageHeight: 800, Fields: []field.Field{}})
	require.NoError(t, err)
	assert.Empty(t, rec.ops)
	assert.Equal(t, 0, res.Drawn)
	assert.True(t, bytes.HasPrefix(rec.page.Base, []byte("%PDF-")), "blank base page expected")
}

func TestRender_Choice(t *testing.T) {
	opts := []string{"Yes", "No"}
	tests := []struct {
		name       string
		value      *string
		wantFilled bool
		wantLabel  string
	}{
		{name: "selected second", value: strPtr("option-1"), wantFilled: true, wantLabel: "No"},
		{name: "unset shows first option hollow", value: nil, wantFilled: false, wantLabel: "Yes"},
		{name: "unknown key shows hollow", value: strPtr("option-9"), wantFilled: false, wantLabel: "Yes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, rec := newTestRenderer(true)
			_, err := r.Render(context.Background(), Request{
				PageWidth:  1000,
				PageHeight: 1000,
				Fields: []field.Field{
					{ID: "c", Type: field.TypeChoice, X: 0, Y: 0, Width: 20, Height: 5, Value: tt.value, Options: opts},
				},
			})
			require.NoError(t, err)
			require.Len(t, rec.inds, 1)
			require.Len(t, rec.runs, 1)

			ind := rec.inds[0]
			assert.Equal(t, tt.wantFilled, ind.Filled)
			// box 200x50 at y=950; radius = 0.35*50
			assert.InDelta(t, 17.5, ind.Radius, 1e-9)
			assert.InDelta(t, 975, ind.CY, 1e-9)
			assert.InDelta(t, 8.75, ind.InnerRadius, 1e-9)
			assert.Equal(t, tt.wantLabel, rec.runs[0].Text)
			assert.Greater(t, rec.runs[0].X, ind.CX+ind.Radius)
		})
	}
}

func TestRender_TextIsClippedToBox(t *testing.T) {
	r, rec := newTestRenderer(true)

	// box 60x40 pt: size 14, each rune 7 pt, 56 pt available => 8 runes
	_, err := r.Render(context.Background(), Request{
		PageWidth:  600,
		PageHeight: 800,
		Fields: []field.Field{
			{ID: "t", Type: field.TypeText, X: 0, Y: 0, Width: 10, Height: 5, Value: strPtr("abcdefghijklmnop")},
		},
	})
	require.NoError(t, err)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, "abcdefgh", rec.runs[0].Text)
}

func TestRender_TextFitsAtDrawnSize(t *testing.T) {
	long := strPtr("The quick brown fox jumps over the lazy dog")

	tests := []struct {
		name     string
		field    field.Field
		wantSize float64
	}{
		// box 104x14.2 pt: 0.6*14.2 = 8.52, drawn at 9
		{name: "text rounds up", field: field.Field{ID: "t", Type: field.TypeText, Width: 10.4, Height: 1.42, Value: long}, wantSize: 9},
		// box 104x12.4 pt: 0.6*12.4 = 7.44, drawn at 7
		{name: "text rounds down", field: field.Field{ID: "t", Type: field.TypeText, Width: 10.4, Height: 1.24, Value: long}, wantSize: 7},
		{name: "choice label rounds up", field: field.Field{ID: "c", Type: field.TypeChoice, Width: 20, Height: 1.42,
			Value: strPtr("option-0"), Options: []string{*long}}, wantSize: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, rec := newTestRenderer(true)
			_, err := r.Render(context.Background(), Request{PageWidth: 1000, PageHeight: 1000, Fields: []field.Field{tt.field}})
			require.NoError(t, err)
			require.Len(t, rec.runs, 1)

			run := rec.runs[0]
			box := geometry.ToPageSpace(geometry.Percent{X: tt.field.X, Y: tt.field.Y, Width: tt.field.Width, Height: tt.field.Height}, 1000, 1000)
			assert.InDelta(t, tt.wantSize, run.Size, 1e-9)
			assert.LessOrEqual(t, fixedWidth{}.TextWidth(run.Text, run.Size), box.Right()-textPadding-run.X+1e-9)
			assert.NotEmpty(t, run.Text)
		})
	}
}

func TestClipText_HelveticaAtStampSize(t *testing.T) {
	size := stampSize(fontSize(14.2, textMaxSize))
	require.InDelta(t, 9, size, 1e-9)

	clipped := clipText(helvetica{}, "The quick brown fox jumps over the lazy dog", size, 100)
	assert.NotEmpty(t, clipped)
	assert.LessOrEqual(t, helvetica{}.TextWidth(clipped, size), 100.0)
}

func TestRender_DateDefaultsToToday(t *testing.T) {
	r, rec := newTestRenderer(true)

	_, err := r.Render(context.Background(), Request{
		PageWidth:  1000,
		PageHeight: 1000,
		Fields: []field.Field{
			{ID: "d1", Type: field.TypeDate, X: 0, Y: 0, Width: 15, Height: 5},
			{ID: "d2", Type: field.TypeDate, X: 0, Y: 10, Width: 15, Height: 5, Value: strPtr("2024-01-02")},
		},
	})
	require.NoError(t, err)
	require.Len(t, rec.runs, 2)
	assert.Equal(t, "2026-03-14", rec.runs[0].Text)
	assert.Equal(t, "2024-01-02", rec.runs[1].Text)
	assert.InDelta(t, dateMaxSize, rec.runs[0].Size, 1e-9)
}

func TestRender_UnknownTypeDrawnGenerically(t *testing.T) {
	r, rec := newTestRenderer(true)

	_, err := r.Render(context.Background(), Request{
		PageWidth:  600,
		PageHeight: 800,
		Fields: []field.Field{
			{ID: "u1", Type: field.Type("stamp"), X: 0, Y: 0, Width: 20, Height: 6},
			{ID: "u2", Type: field.Type("stamp"), X: 0, Y: 10, Width: 50, Height: 6, Value: strPtr("note")},
			{ID: "u3", Type: field.Type("logo"), X: 0, Y: 20, Width: 20, Height: 20, Value: strPtr(pngURI(t, 2, 2))},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"text note", "image 2x2"}, rec.ops)
}

func TestRender_CanceledContext(t *testing.T) {
	r, _ := newTestRenderer(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, Request{
		PageWidth:  600,
		PageHeight: 800,
		Fields:     []field.Field{{ID: "a", Type: field.TypeText, X: 0, Y: 0, Width: 10, Height: 5}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClipText(t *testing.T) {
	m := fixedWidth{}
	assert.Equal(t, "abc", clipText(m, "abc", 10, 15))
	assert.Equal(t, "ab", clipText(m, "abc", 10, 14))
	assert.Equal(t, "", clipText(m, "abc", 10, 4))
	assert.Equal(t, "", clipText(m, "abc", 10, 0))
	assert.Equal(t, "日本", clipText(m, "日本語", 10, 10))
}

func TestSingleLine(t *testing.T) {
	assert.Equal(t, "a b  c", singleLine("a\nb\r\nc"))
}

func TestRasterizeIndicator(t *testing.T) {
	ind := Indicator{CX: 50, CY: 50, Radius: 10, BorderWidth: 1, InnerRadius: 5, Filled: true}
	img := rasterizeIndicator(ind)

	b := img.Bounds()
	require.Equal(t, b.Dx(), b.Dy())
	c := b.Dx() / 2

	alpha := func(x, y int) uint8 { return img.RGBAAt(x, y).A }
	assert.Greater(t, alpha(c, c), uint8(200), "center is filled")
	assert.Zero(t, alpha(0, 0), "corner outside the ring")
	// between inner disc (r=5) and ring (r=9..10): hollow
	gap := c + int(float64(b.Dx())*7.0/20)
	assert.Zero(t, alpha(gap, c), "gap between disc and ring")

	ind.Filled = false
	hollow := rasterizeIndicator(ind)
	assert.Zero(t, hollow.RGBAAt(c, c).A, "hollow center")
}
