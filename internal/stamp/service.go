// Package stamp orchestrates field documents: it keeps one placement engine
// per document, persists every change through a store.Store and renders
// documents into PDF pages.
package stamp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/a3tai/mcp-pdf-stamper/internal/bitmap"
	"github.com/a3tai/mcp-pdf-stamper/internal/field"
	"github.com/a3tai/mcp-pdf-stamper/internal/logging"
	"github.com/a3tai/mcp-pdf-stamper/internal/placement"
	"github.com/a3tai/mcp-pdf-stamper/internal/render"
	"github.com/a3tai/mcp-pdf-stamper/internal/stamperr"
	"github.com/a3tai/mcp-pdf-stamper/internal/store"
)

// Options configures a Service.
type Options struct {
	Store    store.Store
	Renderer *render.Renderer
	Capturer placement.Capturer

	// StoreName is reported by Info.
	StoreName string

	DefaultPageWidth  float64
	DefaultPageHeight float64

	// MaxBaseSize bounds the size of a base document in bytes; zero disables the check.
	MaxBaseSize int64

	StrictGeometry bool
	VerifyOutput   bool

	// SessionIdle evicts in-process sessions unused for this long; zero
	// means DefaultSessionIdle.
	SessionIdle time.Duration
	Now         func() time.Time

	ServerName string
	Version    string
	Logger     *log.Logger
}

// DefaultSessionIdle is how long an unused document session stays cached.
const DefaultSessionIdle = 30 * time.Minute

// Service handles field document operations. Operations on one document are
// serialized; different documents proceed in parallel.
type Service struct {
	opts   Options
	logger *log.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// session is the in-process state of one document. lastUsed is guarded by
// Service.mu, everything else by mu.
type session struct {
	mu       sync.Mutex
	doc      *store.Document // nil until loaded
	engine   *placement.Engine
	deleted  bool
	lastUsed time.Time
}

// NewService creates a service. Store and Renderer are required.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("renderer cannot be nil")
	}
	if opts.DefaultPageWidth <= 0 || opts.DefaultPageHeight <= 0 {
		return nil, fmt.Errorf("default page size must be positive, got %gx%g",
			opts.DefaultPageWidth, opts.DefaultPageHeight)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.StoreName == "" {
		opts.StoreName = "memory"
	}
	if opts.SessionIdle <= 0 {
		opts.SessionIdle = DefaultSessionIdle
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		opts:     opts,
		logger:   opts.Logger,
		sessions: make(map[string]*session),
	}, nil
}

// FieldCreate drops a new field onto a document, creating the document if needed.
func (s *Service) FieldCreate(ctx context.Context, req FieldCreateRequest) (*FieldResult, error) {
	if req.Type == "" {
		return nil, stamperr.New(stamperr.KindInvalidRequest, "field type is required")
	}
	if req.DocumentID == "" {
		req.DocumentID = uuid.NewString()
	}

	page := [2]float64{req.PageWidth, req.PageHeight}
	if page[0] == 0 && page[1] == 0 {
		page = [2]float64{s.opts.DefaultPageWidth, s.opts.DefaultPageHeight}
	}
	if page[0] <= 0 || page[1] <= 0 {
		return nil, stamperr.Newf(stamperr.KindInvalidRequest, "page size must be positive, got %gx%g", page[0], page[1])
	}

	var result *FieldResult
	err := s.withDocument(ctx, req.DocumentID, &page, func(sess *session) (bool, error) {
		f, err := sess.engine.Create(field.ParseType(req.Type), req.Drop, req.Container)
		if err != nil {
			return false, err
		}
		result = s.fieldResult(sess, f.ID)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FieldDrag replays a drag gesture over req.Path.
func (s *Service) FieldDrag(ctx context.Context, req FieldDragRequest) (*FieldResult, error) {
	if err := requireIDs(req.DocumentID, req.FieldID); err != nil {
		return nil, err
	}

	var result *FieldResult
	err := s.withDocument(ctx, req.DocumentID, nil, func(sess *session) (bool, error) {
		e := sess.engine
		if err := e.BeginDrag(req.FieldID, req.Grab); err != nil {
			return false, err
		}
		for _, p := range req.Path {
			if _, _, err := e.ContinueDrag(p, req.Container); err != nil {
				_ = e.EndDrag()
				return false, err
			}
		}
		if err := e.EndDrag(); err != nil {
			return false, err
		}
		result = s.fieldResult(sess, req.FieldID)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FieldResize replays a resize gesture over req.Path.
func (s *Service) FieldResize(ctx context.Context, req FieldResizeRequest) (*FieldResult, error) {
	if err := requireIDs(req.DocumentID, req.FieldID); err != nil {
		return nil, err
	}

	var result *FieldResult
	err := s.withDocument(ctx, req.DocumentID, nil, func(sess *session) (bool, error) {
		e := sess.engine
		if err := e.BeginResize(req.FieldID); err != nil {
			return false, err
		}
		for _, p := range req.Path {
			if _, _, err := e.ContinueResize(p, req.FieldOrigin, req.Container); err != nil {
				_ = e.EndResize()
				return false, err
			}
		}
		if err := e.EndResize(); err != nil {
			return false, err
		}
		result = s.fieldResult(sess, req.FieldID)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FieldEdit validates and stores a new value, or with Cancel leaves an edit
// started by a click without changing the value.
func (s *Service) FieldEdit(ctx context.Context, req FieldEditRequest) (*FieldResult, error) {
	if err := requireIDs(req.DocumentID, req.FieldID); err != nil {
		return nil, err
	}

	var result *FieldResult
	err := s.withDocument(ctx, req.DocumentID, nil, func(sess *session) (bool, error) {
		if req.Cancel {
			if err := sess.engine.CancelEdit(req.FieldID); err != nil {
				return false, err
			}
			result = s.fieldResult(sess, req.FieldID)
			return false, nil
		}
		if err := sess.engine.Edit(req.FieldID, req.Value); err != nil {
			return false, err
		}
		result = s.fieldResult(sess, req.FieldID)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FieldClick handles a click. Clicking an unset signature asks the capture
// collaborator for a bitmap.
func (s *Service) FieldClick(ctx context.Context, req FieldClickRequest) (*FieldClickResult, error) {
	if err := requireIDs(req.DocumentID, req.FieldID); err != nil {
		return nil, err
	}

	var result *FieldClickResult
	err := s.withDocument(ctx, req.DocumentID, nil, func(sess *session) (bool, error) {
		res, err := sess.engine.Click(ctx, req.FieldID)
		if err != nil {
			return false, err
		}
		result = &FieldClickResult{FieldResult: *s.fieldResult(sess, req.FieldID), Result: res}
		return res == placement.ClickCaptured, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FieldRemove deletes a field. Removing an unknown field is not an error.
func (s *Service) FieldRemove(ctx context.Context, req FieldRemoveRequest) (*FieldRemoveResult, error) {
	if err := requireIDs(req.DocumentID, req.FieldID); err != nil {
		return nil, err
	}

	var result *FieldRemoveResult
	err := s.withDocument(ctx, req.DocumentID, nil, func(sess *session) (bool, error) {
		before := sess.engine.Set().Len()
		sess.engine.Remove(req.FieldID)
		after := sess.engine.Set().Len()
		result = &FieldRemoveResult{DocumentID: req.DocumentID, FieldID: req.FieldID, Remaining: after}
		return after != before, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FieldList returns the document's fields in paint order.
func (s *Service) FieldList(ctx context.Context, req FieldListRequest) (*FieldListResult, error) {
	if req.DocumentID == "" {
		return nil, stamperr.New(stamperr.KindInvalidRequest, "document_id is required")
	}

	var result *FieldListResult
	err := s.withDocument(ctx, req.DocumentID, nil, func(sess *session) (bool, error) {
		result = &FieldListResult{
			DocumentID: req.DocumentID,
			PageWidth:  sess.doc.PageWidth,
			PageHeight: sess.doc.PageHeight,
			Fields:     sess.engine.Set().Fields(),
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DocumentDelete drops a document and its in-process session.
func (s *Service) DocumentDelete(ctx context.Context, id string) error {
	if id == "" {
		return stamperr.New(stamperr.KindInvalidRequest, "document_id is required")
	}

	// Waiting for the session lock lets an operation already in flight
	// finish its save before the document goes away.
	sess := s.acquire(id)
	defer sess.mu.Unlock()

	if err := s.opts.Store.Delete(ctx, id); err != nil {
		return stamperr.Wrap(stamperr.KindOutput, err, "cannot delete document")
	}
	sess.deleted = true
	s.drop(id, sess)
	s.logger.Debug("document deleted", "document", id)
	return nil
}

// RenderFields renders a stored document. When a base PDF is supplied the
// fields are mapped onto its first page's size instead of the stored one.
func (s *Service) RenderFields(ctx context.Context, req RenderFieldsRequest) (*RenderResult, error) {
	if req.DocumentID == "" {
		return nil, stamperr.New(stamperr.KindInvalidRequest, "document_id is required")
	}

	var rreq render.Request
	err := s.withDocument(ctx, req.DocumentID, nil, func(sess *session) (bool, error) {
		rreq = render.Request{Fields: sess.engine.Set().Fields(), Base: req.Base}
		if len(req.Base) == 0 {
			rreq.PageWidth, rreq.PageHeight = sess.doc.PageWidth, sess.doc.PageHeight
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	res, err := s.Render(ctx, rreq)
	if err != nil {
		return nil, err
	}
	res.DocumentID = req.DocumentID
	return res, nil
}

// Render renders a self-contained request without touching the store.
func (s *Service) Render(ctx context.Context, req render.Request) (*RenderResult, error) {
	if s.opts.MaxBaseSize > 0 && int64(len(req.Base)) > s.opts.MaxBaseSize {
		return nil, stamperr.Newf(stamperr.KindInvalidRequest,
			"base document is %d bytes, limit is %d", len(req.Base), s.opts.MaxBaseSize)
	}

	res, err := s.opts.Renderer.Render(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &RenderResult{
		Output:     res.Output,
		PageWidth:  res.PageWidth,
		PageHeight: res.PageHeight,
		Drawn:      res.Drawn,
		Skipped:    res.Skipped,
		Issues:     res.Issues,
	}

	if s.opts.VerifyOutput {
		pages, err := render.Verify(res.Output)
		if err != nil {
			return nil, stamperr.Wrap(stamperr.KindOutput, err, "rendered output failed verification")
		}
		out.Pages = pages
	}

	logging.FromContext(ctx, s.logger).Info("rendered", "result", res.String())
	return out, nil
}

// Info describes the service configuration and tool surface.
func (s *Service) Info(ctx context.Context, tools []ToolInfo) (*InfoResult, error) {
	ids, err := s.opts.Store.List(ctx)
	if err != nil {
		return nil, stamperr.Wrap(stamperr.KindOutput, err, "cannot list documents")
	}

	types := make([]string, 0, len(field.Types))
	for _, t := range field.Types {
		types = append(types, string(t))
	}

	return &InfoResult{
		ServerName:      s.opts.ServerName,
		Version:         s.opts.Version,
		Store:           s.opts.StoreName,
		DefaultPage:     [2]float64{s.opts.DefaultPageWidth, s.opts.DefaultPageHeight},
		StrictGeometry:  s.opts.StrictGeometry,
		VerifyOutput:    s.opts.VerifyOutput,
		FieldTypes:      types,
		SupportedImages: bitmap.SupportedCodecs(),
		Documents:       len(ids),
		AvailableTools:  tools,
	}, nil
}

// withDocument runs fn with the document's session locked. A nil page means
// the document must already exist; otherwise a missing document is created
// with that page size. fn reports whether it changed the fields, in which
// case the document is saved.
func (s *Service) withDocument(ctx context.Context, id string, page *[2]float64,
	fn func(*session) (bool, error),
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sess := s.acquire(id)
	defer sess.mu.Unlock()

	if err := s.sync(ctx, id, page, sess); err != nil {
		s.drop(id, sess)
		return err
	}

	changed, err := fn(sess)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	sess.doc.Fields = sess.engine.Set().Fields()
	sess.doc.UpdatedAt = s.opts.Now()
	if err := s.opts.Store.Put(ctx, sess.doc); err != nil {
		return stamperr.Wrap(stamperr.KindOutput, err, "cannot save document")
	}
	return nil
}

// acquire returns the live session for id with its lock held. A session
// deleted while the caller waited for it is skipped.
func (s *Service) acquire(id string) *session {
	for {
		now := s.opts.Now()

		s.mu.Lock()
		s.evictIdle(now)
		sess, ok := s.sessions[id]
		if !ok {
			sess = &session{}
			s.sessions[id] = sess
		}
		sess.lastUsed = now
		s.mu.Unlock()

		sess.mu.Lock()
		if !sess.deleted {
			return sess
		}
		sess.mu.Unlock()
	}
}

// evictIdle drops sessions unused for longer than SessionIdle. The caller
// holds s.mu.
func (s *Service) evictIdle(now time.Time) {
	for id, sess := range s.sessions {
		if now.Sub(sess.lastUsed) > s.opts.SessionIdle {
			delete(s.sessions, id)
			s.logger.Debug("session evicted", "document", id)
		}
	}
}

func (s *Service) drop(id string, sess *session) {
	s.mu.Lock()
	if s.sessions[id] == sess {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
}

// sync loads the document on first use and reloads it when the stored copy
// changed behind the session, as happens when processes share a store.
// Reloading resets the in-process interaction state.
func (s *Service) sync(ctx context.Context, id string, page *[2]float64, sess *session) error {
	doc, err := s.opts.Store.Get(ctx, id)
	switch {
	case err == nil:
		if sess.doc != nil && doc.UpdatedAt.Equal(sess.doc.UpdatedAt) {
			return nil
		}
		if sess.doc != nil {
			s.logger.Debug("document changed in store, reloading", "document", id)
		}
	case errors.Is(err, store.ErrNotFound) && page != nil:
		doc = &store.Document{ID: id, PageWidth: page[0], PageHeight: page[1], Fields: []field.Field{}}
		s.logger.Debug("document created", "document", id, "page", fmt.Sprintf("%gx%g", page[0], page[1]))
	case errors.Is(err, store.ErrNotFound):
		return stamperr.Newf(stamperr.KindNotFound, "document %q not found", id)
	default:
		return stamperr.Wrap(stamperr.KindOutput, err, "cannot load document")
	}

	engineOpts := []placement.Option{placement.WithLogger(s.logger.With("document", id))}
	if s.opts.Capturer != nil {
		engineOpts = append(engineOpts, placement.WithCapturer(s.opts.Capturer))
	}

	sess.doc = doc
	sess.engine = placement.NewEngine(field.NewSet(doc.Fields...), engineOpts...)
	return nil
}

func (s *Service) fieldResult(sess *session, id string) *FieldResult {
	res := &FieldResult{DocumentID: sess.doc.ID, State: sess.engine.State(id).String()}
	if f := sess.engine.Set().Get(id); f != nil {
		res.Field = f.Clone()
	}
	return res
}

func requireIDs(documentID, fieldID string) error {
	if documentID == "" {
		return stamperr.New(stamperr.KindInvalidRequest, "document_id is required")
	}
	if fieldID == "" {
		return stamperr.New(stamperr.KindInvalidRequest, "field_id is required")
	}
	return nil
}
