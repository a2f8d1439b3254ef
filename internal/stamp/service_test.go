package stamp

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-stamper/internal/bitmap"
	"github.com/a3tai/mcp-pdf-stamper/internal/field"
	"github.com/a3tai/mcp-pdf-stamper/internal/geometry"
	"github.com/a3tai/mcp-pdf-stamper/internal/logging"
	"github.com/a3tai/mcp-pdf-stamper/internal/placement"
	"github.com/a3tai/mcp-pdf-stamper/internal/render"
	"github.com/a3tai/mcp-pdf-stamper/internal/stamperr"
	"github.com/a3tai/mcp-pdf-stamper/internal/store"
)

// countingCanvas counts draw operations.
type countingCanvas struct{ ops int }

func (c *countingCanvas) Image(*bitmap.Decoded, geometry.Box) error {
	c.ops++
	return nil
}

func (c *countingCanvas) Text(render.TextRun) error {
	c.ops++
	return nil
}

func (c *countingCanvas) Indicator(render.Indicator) error {
	c.ops++
	return nil
}

func (c *countingCanvas) Finish(context.Context) ([]byte, error) {
	return []byte("ops"), nil
}

func newTestService(t *testing.T, mutate func(*Options)) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	opts := Options{
		Store: st,
		Renderer: render.NewRenderer(render.Options{
			StrictGeometry: true,
			Canvas:         func(render.Page) (render.Canvas, error) { return &countingCanvas{}, nil },
			Logger:         logging.Discard(),
		}),
		DefaultPageWidth:  612,
		DefaultPageHeight: 792,
		StrictGeometry:    true,
		ServerName:        "test",
		Version:           "0.0.0",
		Logger:            logging.Discard(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	svc, err := NewService(opts)
	require.NoError(t, err)
	return svc, st
}

func signatureURI(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 30, 10))
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return field.EncodeDataURI("image/png", buf.Bytes())
}

func strPtr(s string) *string { return &s }

var testContainer = placement.Rect{Left: 0, Top: 0, Width: 800, Height: 1000}

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := NewService(Options{})
	assert.Error(t, err)

	_, err = NewService(Options{Store: store.NewMemoryStore()})
	assert.Error(t, err)

	_, err = NewService(Options{
		Store:    store.NewMemoryStore(),
		Renderer: render.NewRenderer(render.Options{}),
	})
	assert.Error(t, err, "default page size is required")
}

func TestFieldCreate_PersistsDocument(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, nil)

	res, err := svc.FieldCreate(ctx, FieldCreateRequest{
		DocumentID: "doc",
		Type:       "text",
		Drop:       placement.Point{X: 80, Y: 100},
		Container:  testContainer.Size(),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Field)
	assert.Equal(t, "doc", res.DocumentID)
	assert.Equal(t, "idle", res.State)
	assert.InDelta(t, 10, res.Field.X, 1e-9)
	assert.InDelta(t, 10, res.Field.Y, 1e-9)

	doc, err := st.Get(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 612.0, doc.PageWidth)
	assert.Equal(t, 792.0, doc.PageHeight)
	require.Len(t, doc.Fields, 1)
	assert.Equal(t, res.Field.ID, doc.Fields[0].ID)
}

func TestFieldCreate_GeneratesDocumentID(t *testing.T) {
	svc, _ := newTestService(t, nil)

	res, err := svc.FieldCreate(context.Background(), FieldCreateRequest{
		Type:      "signature",
		Container: testContainer.Size(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.DocumentID)
}

func TestFieldCreate_InvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		req  FieldCreateRequest
		kind stamperr.Kind
	}{
		{name: "missing type", req: FieldCreateRequest{DocumentID: "d", Container: testContainer.Size()}, kind: stamperr.KindInvalidRequest},
		{name: "negative page", req: FieldCreateRequest{DocumentID: "d", Type: "text", PageWidth: -1, PageHeight: 10, Container: testContainer.Size()}, kind: stamperr.KindInvalidRequest},
		{name: "empty container", req: FieldCreateRequest{DocumentID: "d", Type: "text"}, kind: stamperr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, nil)
			_, err := svc.FieldCreate(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, stamperr.KindOf(err))
		})
	}
}

func TestFieldDrag_MovesAndSuppressesClick(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, nil)

	created, err := svc.FieldCreate(ctx, FieldCreateRequest{
		DocumentID: "doc", Type: "text", Container: testContainer.Size(),
	})
	require.NoError(t, err)
	id := created.Field.ID

	moved, err := svc.FieldDrag(ctx, FieldDragRequest{
		DocumentID: "doc",
		FieldID:    id,
		Grab:       placement.Point{X: 10, Y: 10},
		Path:       []placement.Point{{X: 100, Y: 100}, {X: 410, Y: 510}},
		Container:  testContainer,
	})
	require.NoError(t, err)
	assert.InDelta(t, 50, moved.Field.X, 1e-9)
	assert.InDelta(t, 50, moved.Field.Y, 1e-9)
	assert.Equal(t, "idle", moved.State)

	doc, err := st.Get(ctx, "doc")
	require.NoError(t, err)
	assert.InDelta(t, 50, doc.Fields[0].X, 1e-9)

	click, err := svc.FieldClick(ctx, FieldClickRequest{DocumentID: "doc", FieldID: id})
	require.NoError(t, err)
	assert.Equal(t, placement.ClickSuppressed, click.Result)

	click, err = svc.FieldClick(ctx, FieldClickRequest{DocumentID: "doc", FieldID: id})
	require.NoError(t, err)
	assert.Equal(t, placement.ClickEditing, click.Result)
	assert.Equal(t, "editing", click.State)
}

func TestFieldDrag_BadContainerLeavesFieldIdle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	created, err := svc.FieldCreate(ctx, FieldCreateRequest{DocumentID: "doc", Type: "text", Container: testContainer.Size()})
	require.NoError(t, err)

	_, err = svc.FieldDrag(ctx, FieldDragRequest{
		DocumentID: "doc",
		FieldID:    created.Field.ID,
		Path:       []placement.Point{{X: 1, Y: 1}},
	})
	require.Error(t, err)

	list, err := svc.FieldList(ctx, FieldListRequest{DocumentID: "doc"})
	require.NoError(t, err)
	assert.Equal(t, created.Field.X, list.Fields[0].X)

	// a new gesture can start, so the failed one was closed
	_, err = svc.FieldResize(ctx, FieldResizeRequest{
		DocumentID: "doc",
		FieldID:    created.Field.ID,
		Path:       []placement.Point{{X: 400, Y: 300}},
		Container:  testContainer,
	})
	assert.NoError(t, err)
}

func TestFieldResize_ClampsToBounds(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	created, err := svc.FieldCreate(ctx, FieldCreateRequest{DocumentID: "doc", Type: "image", Container: testContainer.Size()})
	require.NoError(t, err)

	res, err := svc.FieldResize(ctx, FieldResizeRequest{
		DocumentID:  "doc",
		FieldID:     created.Field.ID,
		FieldOrigin: placement.Point{X: 0, Y: 0},
		Path:        []placement.Point{{X: 2, Y: 2}},
		Container:   testContainer,
	})
	require.NoError(t, err)
	assert.InDelta(t, placement.DefaultBounds.MinWidth, res.Field.Width, 1e-9)
	assert.InDelta(t, placement.DefaultBounds.MinHeight, res.Field.Height, 1e-9)
}

func TestFieldEdit(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, nil)

	created, err := svc.FieldCreate(ctx, FieldCreateRequest{DocumentID: "doc", Type: "date", Container: testContainer.Size()})
	require.NoError(t, err)
	id := created.Field.ID

	_, err = svc.FieldEdit(ctx, FieldEditRequest{DocumentID: "doc", FieldID: id, Value: strPtr("31/01/2026")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, stamperr.ErrValidation))

	res, err := svc.FieldEdit(ctx, FieldEditRequest{DocumentID: "doc", FieldID: id, Value: strPtr("2026-01-31")})
	require.NoError(t, err)
	assert.Equal(t, "2026-01-31", res.Field.StringValue())

	doc, err := st.Get(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-31", doc.Fields[0].StringValue())
}

func TestFieldClick_CapturesSignature(t *testing.T) {
	ctx := context.Background()
	uri := signatureURI(t)
	calls := 0
	svc, st := newTestService(t, func(o *Options) {
		o.Capturer = placement.CapturerFunc(func(ctx context.Context, f field.Field) (string, error) {
			calls++
			return uri, nil
		})
	})

	created, err := svc.FieldCreate(ctx, FieldCreateRequest{DocumentID: "doc", Type: "signature", Container: testContainer.Size()})
	require.NoError(t, err)

	res, err := svc.FieldClick(ctx, FieldClickRequest{DocumentID: "doc", FieldID: created.Field.ID})
	require.NoError(t, err)
	assert.Equal(t, placement.ClickCaptured, res.Result)
	assert.Equal(t, 1, calls)

	doc, err := st.Get(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, uri, doc.Fields[0].StringValue())

	res, err = svc.FieldClick(ctx, FieldClickRequest{DocumentID: "doc", FieldID: created.Field.ID})
	require.NoError(t, err)
	assert.Equal(t, placement.ClickIgnored, res.Result)
	assert.Equal(t, 1, calls)
}

func TestFieldRemove_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	created, err := svc.FieldCreate(ctx, FieldCreateRequest{DocumentID: "doc", Type: "choice", Container: testContainer.Size()})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res, err := svc.FieldRemove(ctx, FieldRemoveRequest{DocumentID: "doc", FieldID: created.Field.ID})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Remaining)
	}
}

func TestUnknownDocument(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.FieldList(context.Background(), FieldListRequest{DocumentID: "missing"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, stamperr.ErrNotFound))

	_, err = svc.FieldEdit(context.Background(), FieldEditRequest{DocumentID: "missing", FieldID: "x"})
	assert.True(t, errors.Is(err, stamperr.ErrNotFound))
}

func TestDocumentLoadedFromStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Put(ctx, &store.Document{
		ID: "saved", PageWidth: 300, PageHeight: 400,
		Fields: []field.Field{{ID: "t1", Type: field.TypeText, X: 5, Y: 5, Width: 20, Height: 5}},
	}))

	svc, _ := newTestService(t, func(o *Options) { o.Store = st })

	list, err := svc.FieldList(ctx, FieldListRequest{DocumentID: "saved"})
	require.NoError(t, err)
	assert.Equal(t, 300.0, list.PageWidth)
	require.Len(t, list.Fields, 1)
	assert.Equal(t, "t1", list.Fields[0].ID)
}

func TestRenderFields(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	for _, typ := range []string{"text", "signature", "choice"} {
		_, err := svc.FieldCreate(ctx, FieldCreateRequest{DocumentID: "doc", Type: typ, Container: testContainer.Size()})
		require.NoError(t, err)
	}

	res, err := svc.RenderFields(ctx, RenderFieldsRequest{DocumentID: "doc"})
	require.NoError(t, err)
	assert.Equal(t, "doc", res.DocumentID)
	assert.Equal(t, []byte("ops"), res.Output)
	assert.Equal(t, 2, res.Drawn, "text placeholder and choice")
	assert.Equal(t, 1, res.Skipped, "unset signature")
	assert.Equal(t, 612.0, res.PageWidth)
}

func TestRender_BaseSizeLimit(t *testing.T) {
	svc, _ := newTestService(t, func(o *Options) { o.MaxBaseSize = 10 })

	_, err := svc.Render(context.Background(), render.Request{
		Base:   make([]byte, 11),
		Fields: []field.Field{},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, stamperr.ErrInvalidRequest))
}

func TestRender_VerifiesPDFOutput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping PDF integration test in short mode")
	}
	svc, _ := newTestService(t, func(o *Options) {
		o.Renderer = render.NewRenderer(render.Options{StrictGeometry: true, Logger: logging.Discard()})
		o.VerifyOutput = true
	})

	res, err := svc.Render(context.Background(), render.Request{
		PageWidth:  612,
		PageHeight: 792,
		Fields: []field.Field{
			{ID: "t", Type: field.TypeText, X: 10, Y: 10, Width: 30, Height: 5, Value: strPtr("Signed")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pages)
	assert.True(t, bytes.HasPrefix(res.Output, []byte("%PDF-")))
}

func TestDocumentDelete(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, nil)

	_, err := svc.FieldCreate(ctx, FieldCreateRequest{DocumentID: "doc", Type: "text", Container: testContainer.Size()})
	require.NoError(t, err)

	require.NoError(t, svc.DocumentDelete(ctx, "doc"))
	_, err = st.Get(ctx, "doc")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.FieldList(ctx, FieldListRequest{DocumentID: "doc"})
	assert.True(t, errors.Is(err, stamperr.ErrNotFound))
}

func TestDocumentDelete_WaitsForOperationInFlight(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	uri := signatureURI(t)
	svc, st := newTestService(t, func(o *Options) {
		o.Capturer = placement.CapturerFunc(func(context.Context, field.Field) (string, error) {
			close(entered)
			<-release
			return uri, nil
		})
	})

	created, err := svc.FieldCreate(ctx, FieldCreateRequest{DocumentID: "doc", Type: "signature", Container: testContainer.Size()})
	require.NoError(t, err)

	clicked := make(chan error, 1)
	go func() {
		_, err := svc.FieldClick(ctx, FieldClickRequest{DocumentID: "doc", FieldID: created.Field.ID})
		clicked <- err
	}()
	<-entered

	deleted := make(chan error, 1)
	go func() { deleted <- svc.DocumentDelete(ctx, "doc") }()

	time.Sleep(20 * time.Millisecond)
	close(release)
	require.NoError(t, <-clicked)
	require.NoError(t, <-deleted)

	_, err = st.Get(ctx, "doc")
	assert.ErrorIs(t, err, store.ErrNotFound, "the click's save must not bring the document back")
	_, err = svc.FieldList(ctx, FieldListRequest{DocumentID: "doc"})
	assert.True(t, errors.Is(err, stamperr.ErrNotFound))
}

func TestFieldEdit_CancelLeavesEditing(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, nil)

	created, err := svc.FieldCreate(ctx, FieldCreateRequest{DocumentID: "doc", Type: "text", Container: testContainer.Size()})
	require.NoError(t, err)
	id := created.Field.ID

	click, err := svc.FieldClick(ctx, FieldClickRequest{DocumentID: "doc", FieldID: id})
	require.NoError(t, err)
	require.Equal(t, placement.ClickEditing, click.Result)

	_, err = svc.FieldDrag(ctx, FieldDragRequest{
		DocumentID: "doc", FieldID: id, Path: []placement.Point{{X: 100, Y: 100}}, Container: testContainer,
	})
	assert.True(t, errors.Is(err, stamperr.ErrInvalidState), "a field in editing takes no gestures")

	res, err := svc.FieldEdit(ctx, FieldEditRequest{DocumentID: "doc", FieldID: id, Value: strPtr("ignored"), Cancel: true})
	require.NoError(t, err)
	assert.Equal(t, "idle", res.State)
	assert.Nil(t, res.Field.Value)

	dragged, err := svc.FieldDrag(ctx, FieldDragRequest{
		DocumentID: "doc", FieldID: id, Path: []placement.Point{{X: 240, Y: 300}}, Container: testContainer,
	})
	require.NoError(t, err)
	assert.InDelta(t, 30, dragged.Field.X, 1e-9)

	doc, err := st.Get(ctx, "doc")
	require.NoError(t, err)
	assert.Nil(t, doc.Fields[0].Value)

	_, err = svc.FieldEdit(ctx, FieldEditRequest{DocumentID: "doc", FieldID: "missing", Cancel: true})
	assert.True(t, errors.Is(err, stamperr.ErrNotFound))
}

func TestFieldEdit_SignatureOnlyThroughCapture(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	created, err := svc.FieldCreate(ctx, FieldCreateRequest{DocumentID: "doc", Type: "signature", Container: testContainer.Size()})
	require.NoError(t, err)

	uri := signatureURI(t)
	_, err = svc.FieldEdit(ctx, FieldEditRequest{DocumentID: "doc", FieldID: created.Field.ID, Value: &uri})
	assert.True(t, errors.Is(err, stamperr.ErrValidation))
}

func TestSharedStore_ReloadsChangedDocument(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	share := func(o *Options) { o.Store = st }
	a, _ := newTestService(t, share)
	b, _ := newTestService(t, share)

	_, err := a.FieldCreate(ctx, FieldCreateRequest{DocumentID: "doc", Type: "text", Container: testContainer.Size()})
	require.NoError(t, err)

	list, err := b.FieldList(ctx, FieldListRequest{DocumentID: "doc"})
	require.NoError(t, err)
	require.Len(t, list.Fields, 1)

	_, err = a.FieldCreate(ctx, FieldCreateRequest{DocumentID: "doc", Type: "date", Container: testContainer.Size()})
	require.NoError(t, err)

	list, err = b.FieldList(ctx, FieldListRequest{DocumentID: "doc"})
	require.NoError(t, err)
	assert.Len(t, list.Fields, 2, "b sees the field a added")

	// b's next change builds on a's version instead of overwriting it
	_, err = b.FieldCreate(ctx, FieldCreateRequest{DocumentID: "doc", Type: "choice", Container: testContainer.Size()})
	require.NoError(t, err)
	doc, err := st.Get(ctx, "doc")
	require.NoError(t, err)
	assert.Len(t, doc.Fields, 3)

	require.NoError(t, a.DocumentDelete(ctx, "doc"))
	_, err = b.FieldList(ctx, FieldListRequest{DocumentID: "doc"})
	assert.True(t, errors.Is(err, stamperr.ErrNotFound), "b sees the delete")
}

func TestSessions_EvictedWhenIdle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, func(o *Options) {
		o.SessionIdle = time.Minute
		o.Now = func() time.Time { return now }
	})

	for _, id := range []string{"one", "two"} {
		_, err := svc.FieldCreate(ctx, FieldCreateRequest{DocumentID: id, Type: "text", Container: testContainer.Size()})
		require.NoError(t, err)
	}
	assert.Len(t, svc.sessions, 2)

	now = now.Add(2 * time.Minute)
	list, err := svc.FieldList(ctx, FieldListRequest{DocumentID: "two"})
	require.NoError(t, err)
	assert.Len(t, list.Fields, 1, "an evicted document reloads from the store")
	assert.Len(t, svc.sessions, 1)
	assert.Contains(t, svc.sessions, "two")
}

func TestInfo(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	_, err := svc.FieldCreate(ctx, FieldCreateRequest{DocumentID: "doc", Type: "text", Container: testContainer.Size()})
	require.NoError(t, err)

	info, err := svc.Info(ctx, []ToolInfo{{Name: "field_list"}})
	require.NoError(t, err)
	assert.Equal(t, "memory", info.Store)
	assert.Equal(t, 1, info.Documents)
	assert.Contains(t, info.FieldTypes, "choice")
	assert.Contains(t, info.SupportedImages, "webp")
	assert.Len(t, info.AvailableTools, 1)
}

func TestConcurrentEditsOnOneDocument(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.FieldCreate(ctx, FieldCreateRequest{DocumentID: "doc", Type: "text", Container: testContainer.Size()})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := svc.FieldList(ctx, FieldListRequest{DocumentID: "doc"})
	require.NoError(t, err)
	assert.Len(t, list.Fields, 20)
}
