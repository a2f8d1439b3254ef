package stamp

import (
	"github.com/a3tai/mcp-pdf-stamper/internal/field"
	"github.com/a3tai/mcp-pdf-stamper/internal/placement"
	"github.com/a3tai/mcp-pdf-stamper/internal/stamperr"
)

// Request Types

// FieldCreateRequest represents a request to drop a new field onto a document.
// The document is created with the given page size (or the default) when it
// does not exist yet.
type FieldCreateRequest struct {
	DocumentID string          `json:"document_id"`
	Type       string          `json:"type"`
	Drop       placement.Point `json:"drop"`
	Container  placement.Size  `json:"container"`
	PageWidth  float64         `json:"page_width,omitempty"`
	PageHeight float64         `json:"page_height,omitempty"`
}

// FieldDragRequest represents a complete drag gesture. Path holds the pointer
// positions in order; the field follows each one.
type FieldDragRequest struct {
	DocumentID string            `json:"document_id"`
	FieldID    string            `json:"field_id"`
	Grab       placement.Point   `json:"grab"`
	Path       []placement.Point `json:"path"`
	Container  placement.Rect    `json:"container"`
}

// FieldResizeRequest represents a complete resize gesture from the field's
// bottom-right handle. FieldOrigin is the field's top-left corner in pixels.
type FieldResizeRequest struct {
	DocumentID  string            `json:"document_id"`
	FieldID     string            `json:"field_id"`
	FieldOrigin placement.Point   `json:"field_origin"`
	Path        []placement.Point `json:"path"`
	Container   placement.Rect    `json:"container"`
}

// FieldEditRequest represents a value change. A nil Value clears the field.
// Cancel ends an edit without changing the value and ignores Value.
type FieldEditRequest struct {
	DocumentID string  `json:"document_id"`
	FieldID    string  `json:"field_id"`
	Value      *string `json:"value"`
	Cancel     bool    `json:"cancel,omitempty"`
}

// FieldClickRequest represents a click on a field.
type FieldClickRequest struct {
	DocumentID string `json:"document_id"`
	FieldID    string `json:"field_id"`
}

// FieldRemoveRequest represents a request to delete a field.
type FieldRemoveRequest struct {
	DocumentID string `json:"document_id"`
	FieldID    string `json:"field_id"`
}

// FieldListRequest represents a request to read a document's fields.
type FieldListRequest struct {
	DocumentID string `json:"document_id"`
}

// RenderFieldsRequest represents a request to render a stored document.
// Base optionally carries a one-page PDF to stamp onto.
type RenderFieldsRequest struct {
	DocumentID string `json:"document_id"`
	Base       []byte `json:"base,omitempty"`
}

// Response Types

// FieldResult represents the outcome of a single-field operation.
type FieldResult struct {
	DocumentID string       `json:"document_id"`
	Field      *field.Field `json:"field"`
	State      string       `json:"state"`
}

// FieldClickResult represents what a click triggered.
type FieldClickResult struct {
	FieldResult
	Result placement.ClickResult `json:"result"`
}

// FieldRemoveResult represents the outcome of a remove.
type FieldRemoveResult struct {
	DocumentID string `json:"document_id"`
	FieldID    string `json:"field_id"`
	Remaining  int    `json:"remaining"`
}

// FieldListResult represents a document and its fields in paint order.
type FieldListResult struct {
	DocumentID string        `json:"document_id"`
	PageWidth  float64       `json:"page_width"`
	PageHeight float64       `json:"page_height"`
	Fields     []field.Field `json:"fields"`
}

// RenderResult represents a finished render.
type RenderResult struct {
	DocumentID string           `json:"document_id,omitempty"`
	Output     []byte           `json:"-"`
	PageWidth  float64          `json:"page_width"`
	PageHeight float64          `json:"page_height"`
	Drawn      int              `json:"drawn"`
	Skipped    int              `json:"skipped"`
	Pages      int              `json:"pages,omitempty"`
	Issues     []stamperr.Issue `json:"issues"`
}

// InfoResult describes the running service.
type InfoResult struct {
	ServerName      string     `json:"server_name"`
	Version         string     `json:"version"`
	Store           string     `json:"store"`
	DefaultPage     [2]float64 `json:"default_page"`
	StrictGeometry  bool       `json:"strict_geometry"`
	VerifyOutput    bool       `json:"verify_output"`
	FieldTypes      []string   `json:"field_types"`
	SupportedImages []string   `json:"supported_images"`
	Documents       int        `json:"documents"`
	AvailableTools  []ToolInfo `json:"available_tools"`
}

// ToolInfo describes an available tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  string `json:"parameters"`
}
