// Package placement turns pointer interactions on a resolution-dependent
// surface into field mutations expressed purely in percentage space.
//
// All pixel measurements (drop points, pointer positions, container sizes) are
// passed into each operation; the engine never tracks the viewport itself, so
// results do not depend on the size the surface had when a field was placed.
//
// An Engine is single-writer: operations on one field set must not run
// concurrently.
package placement

import (
	"context"
	"errors"
	"math"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/a3tai/mcp-pdf-stamper/internal/field"
	"github.com/a3tai/mcp-pdf-stamper/internal/stamperr"
)

// Engine creates and manipulates the fields of one set.
type Engine struct {
	set      *field.Set
	machine  *machine
	gesture  *gesture
	suppress map[string]bool // fields whose next click follows a drag or resize
	bounds   Bounds
	capturer Capturer
	newID    func() string
	logger   *log.Logger
}

// gesture is the drag or resize in progress.
type gesture struct {
	fieldID string
	state   State
	grab    Point // pointer offset from the field's top-left corner, pixels
	startX  float64
	startY  float64
	startW  float64
	startH  float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithBounds overrides the resize bounds.
func WithBounds(b Bounds) Option {
	return func(e *Engine) { e.bounds = b }
}

// WithCapturer sets the signature capture collaborator.
func WithCapturer(c Capturer) Option {
	return func(e *Engine) { e.capturer = c }
}

// WithIDFunc overrides field id generation.
func WithIDFunc(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine operating on set. A nil set starts empty.
func NewEngine(set *field.Set, opts ...Option) *Engine {
	if set == nil {
		set = field.NewSet()
	}
	e := &Engine{
		set:      set,
		machine:  newMachine(),
		suppress: make(map[string]bool),
		bounds:   DefaultBounds,
		newID:    uuid.NewString,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Set returns the owned field set.
func (e *Engine) Set() *field.Set {
	return e.set
}

// State returns the interaction state of the field with the given id.
func (e *Engine) State(id string) State {
	return e.machine.get(id)
}

// Create places a new field of type t with its top-left corner at the drop
// point, pulled back inside the container so the whole default footprint
// stays visible.
func (e *Engine) Create(t field.Type, drop Point, container Size) (*field.Field, error) {
	if err := checkContainer(container.Width, container.Height); err != nil {
		return nil, err
	}

	fp := DefaultFootprint(t)
	f := &field.Field{
		ID:      e.newID(),
		Type:    t,
		X:       clamp(drop.X/container.Width*100, 0, 100-fp.Width),
		Y:       clamp(drop.Y/container.Height*100, 0, 100-fp.Height),
		Width:   fp.Width,
		Height:  fp.Height,
		Value:   defaultValue(t),
		Options: defaultOptions(t),
	}
	if !t.Known() {
		e.logger.Warn("unknown field type, using generic footprint", "type", t)
	}

	e.set.Add(f)
	e.logger.Debug("field created", "field", f.String())
	return f.Clone(), nil
}

// BeginDrag starts dragging the field; grab is the pointer offset from the
// field's top-left corner in pixels. Fields being edited ignore the request.
func (e *Engine) BeginDrag(id string, grab Point) error {
	f, err := e.lookup(id)
	if err != nil {
		return err
	}
	if e.machine.get(id) == Editing {
		return nil
	}
	if err := e.beginGesture(f, Dragging); err != nil {
		return err
	}
	e.gesture.grab = grab
	return nil
}

// ContinueDrag moves the dragged field so the grab point follows the pointer.
// The result depends only on its inputs, so repeating a call is harmless.
func (e *Engine) ContinueDrag(pointer Point, container Rect) (x, y float64, err error) {
	f, err := e.activeField(Dragging)
	if err != nil {
		return 0, 0, err
	}
	if err := checkContainer(container.Width, container.Height); err != nil {
		return 0, 0, err
	}

	g := e.gesture
	px := (pointer.X - container.Left - g.grab.X) / container.Width * 100
	py := (pointer.Y - container.Top - g.grab.Y) / container.Height * 100

	f.X = clamp(px, 0, 100-f.Width)
	f.Y = clamp(py, 0, 100-f.Height)
	return f.X, f.Y, nil
}

// EndDrag finishes the current drag. It does not move the field.
func (e *Engine) EndDrag() error {
	return e.endGesture(Dragging)
}

// BeginResize starts resizing the field from its bottom-right corner.
func (e *Engine) BeginResize(id string) error {
	f, err := e.lookup(id)
	if err != nil {
		return err
	}
	return e.beginGesture(f, Resizing)
}

// ContinueResize sets the size from the distance between the field's fixed
// top-left corner (fieldOrigin, pixels) and the pointer. Position is kept.
func (e *Engine) ContinueResize(pointer, fieldOrigin Point, container Rect) (width, height float64, err error) {
	f, err := e.activeField(Resizing)
	if err != nil {
		return 0, 0, err
	}
	if err := checkContainer(container.Width, container.Height); err != nil {
		return 0, 0, err
	}

	w := (pointer.X - fieldOrigin.X) / container.Width * 100
	h := (pointer.Y - fieldOrigin.Y) / container.Height * 100

	f.Width = math.Min(clamp(w, e.bounds.MinWidth, e.bounds.MaxWidth), 100-f.X)
	f.Height = math.Min(clamp(h, e.bounds.MinHeight, e.bounds.MaxHeight), 100-f.Y)
	return f.Width, f.Height, nil
}

// EndResize finishes the current resize.
func (e *Engine) EndResize() error {
	return e.endGesture(Resizing)
}

// Edit validates v for the field's type and replaces its value. A field that
// is being dragged or resized cannot be edited; an edit on a field in Editing
// completes the edit. Signature values only arrive through Click.
func (e *Engine) Edit(id string, v *string) error {
	f, err := e.lookup(id)
	if err != nil {
		return err
	}
	if f.Type == field.TypeSignature {
		return stamperr.Validation("signature values are captured by clicking the field").
			WithField(id, string(f.Type))
	}
	return e.setValue(f, v)
}

func (e *Engine) setValue(f *field.Field, v *string) error {
	id := f.ID
	switch e.machine.get(id) {
	case Dragging, Resizing:
		return stamperr.Newf(stamperr.KindInvalidState, "field is %s", e.machine.get(id)).WithField(id, string(f.Type))
	}

	if err := validateValue(f, v); err != nil {
		var se *stamperr.StampError
		if errors.As(err, &se) {
			se.WithField(id, string(f.Type))
		}
		return err
	}

	f.SetValue(v)
	if e.machine.get(id) == Editing {
		_ = e.machine.transition(id, Idle)
	}
	e.logger.Debug("field value set", "field", id, "type", f.Type, "cleared", v == nil)
	return nil
}

// BeginEdit puts an idle field into Editing. Edit commits the edit and
// CancelEdit abandons it.
func (e *Engine) BeginEdit(id string) error {
	if _, err := e.lookup(id); err != nil {
		return err
	}
	if e.machine.get(id) == Editing {
		return nil
	}
	return e.machine.transition(id, Editing)
}

// CancelEdit leaves Editing without touching the value. It is a no-op for a
// field that is not being edited.
func (e *Engine) CancelEdit(id string) error {
	if _, err := e.lookup(id); err != nil {
		return err
	}
	if e.machine.get(id) != Editing {
		return nil
	}
	return e.machine.transition(id, Idle)
}

// Click handles a click on the field. A click that completes a drag or
// resize gesture is swallowed. A click on an unset signature field in Idle is
// the only path that invokes the capture collaborator.
func (e *Engine) Click(ctx context.Context, id string) (ClickResult, error) {
	f, err := e.lookup(id)
	if err != nil {
		return ClickIgnored, err
	}
	if e.suppress[id] {
		delete(e.suppress, id)
		return ClickSuppressed, nil
	}
	if e.machine.get(id) != Idle {
		return ClickIgnored, nil
	}

	switch f.Type {
	case field.TypeSignature:
		if f.Filled() {
			return ClickIgnored, nil
		}
		return e.capture(ctx, f)
	case field.TypeText, field.TypeDate, field.TypeChoice:
		if err := e.BeginEdit(id); err != nil {
			return ClickIgnored, err
		}
		return ClickEditing, nil
	case field.TypeImage:
		return ClickIgnored, nil
	default:
		return ClickIgnored, nil
	}
}

func (e *Engine) capture(ctx context.Context, f *field.Field) (ClickResult, error) {
	if e.capturer == nil {
		return ClickIgnored, stamperr.New(stamperr.KindInvalidState, "no signature capture available").
			WithField(f.ID, string(f.Type))
	}
	uri, err := e.capturer.Capture(ctx, *f.Clone())
	if err != nil {
		return ClickIgnored, err
	}
	if err := e.setValue(f, &uri); err != nil {
		return ClickIgnored, err
	}
	return ClickCaptured, nil
}

// Remove deletes the field. Unknown ids are ignored.
func (e *Engine) Remove(id string) {
	if !e.set.Remove(id) {
		return
	}
	e.machine.forget(id)
	delete(e.suppress, id)
	if e.gesture != nil && e.gesture.fieldID == id {
		e.gesture = nil
	}
	e.logger.Debug("field removed", "field", id)
}

func (e *Engine) lookup(id string) (*field.Field, error) {
	f := e.set.Get(id)
	if f == nil {
		return nil, stamperr.New(stamperr.KindNotFound, "field not found").WithField(id, "")
	}
	return f, nil
}

func (e *Engine) beginGesture(f *field.Field, s State) error {
	if e.gesture != nil {
		return stamperr.Newf(stamperr.KindInvalidState, "a %s gesture is already in progress on %s",
			e.gesture.state, e.gesture.fieldID).WithField(f.ID, string(f.Type))
	}
	if err := e.machine.transition(f.ID, s); err != nil {
		return err
	}
	e.gesture = &gesture{
		fieldID: f.ID,
		state:   s,
		startX:  f.X,
		startY:  f.Y,
		startW:  f.Width,
		startH:  f.Height,
	}
	delete(e.suppress, f.ID)
	return nil
}

func (e *Engine) activeField(s State) (*field.Field, error) {
	if e.gesture == nil || e.gesture.state != s {
		return nil, stamperr.Newf(stamperr.KindInvalidState, "no %s gesture in progress", s)
	}
	return e.lookup(e.gesture.fieldID)
}

func (e *Engine) endGesture(s State) error {
	g := e.gesture
	if g == nil || g.state != s {
		return nil
	}
	e.gesture = nil
	if err := e.machine.transition(g.fieldID, Idle); err != nil {
		return err
	}

	if f := e.set.Get(g.fieldID); f != nil {
		moved := f.X != g.startX || f.Y != g.startY || f.Width != g.startW || f.Height != g.startH
		if moved {
			e.suppress[g.fieldID] = true
		}
		e.logger.Debug("gesture finished", "field", g.fieldID, "gesture", s, "moved", moved)
	}
	return nil
}

func checkContainer(w, h float64) error {
	if !(w > 0) || !(h > 0) || math.IsInf(w, 0) || math.IsInf(h, 0) {
		return stamperr.Validation("container size %gx%g must be positive", w, h)
	}
	return nil
}

// clamp limits v to [lo, hi]. NaN maps to lo. When hi < lo, lo wins.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return math.Max(hi, lo)
	}
	return v
}
