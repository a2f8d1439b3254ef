// Package store persists field documents between tool calls.
//
// A Document is the durable part of an editing session: the page it targets
// and its ordered field set. Two backends are provided:
//   - memory: process-local storage for stdio sessions and tests
//   - redis: shared storage for multi-instance server deployments
package store

import (
	"context"
	"errors"
	"time"

	"github.com/a3tai/mcp-pdf-stamper/internal/field"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is a stored field layout for one page.
type Document struct {
	ID         string        `json:"id"`
	PageWidth  float64       `json:"page_width"`
	PageHeight float64       `json:"page_height"`
	Fields     []field.Field `json:"fields"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	c := *d
	c.Fields = make([]field.Field, len(d.Fields))
	for i := range d.Fields {
		c.Fields[i] = *d.Fields[i].Clone()
	}
	return &c
}

// Store is the interface for document storage backends.
type Store interface {
	// Get retrieves a document by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Document, error)

	// Put creates or replaces a document. A zero UpdatedAt is set to the
	// current time; any other value is kept so callers can detect changes.
	Put(ctx context.Context, doc *Document) error

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all stored documents.
	List(ctx context.Context) ([]string, error)

	Close() error
}
