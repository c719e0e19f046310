// Package storage persists documents, their embeddings and their current
// shelf/folder location.
//
// The organizer reads (id, embedding) pairs from an Engine and writes accepted
// location suggestions back through UpdateLocation. Two engines implement the
// interface:
//   - MemoryEngine: maps behind a mutex, for tests and throwaway runs
//   - BadgerEngine: persistent BadgerDB store with optional encryption at rest
//
// Example Usage:
//
//	engine := storage.NewMemoryEngine()
//	defer engine.Close()
//
//	doc := &storage.Document{
//		ID:        "doc-1",
//		Name:      "Invoice March",
//		Embedding: vector.Present(emb),
//	}
//	if err := engine.PutDocument(doc); err != nil {
//		return err
//	}
//
//	engine.UpdateLocation("doc-1", organize.Location{Shelf: 1, Folder: "A"})
package storage

import (
	"errors"
	"time"

	"github.com/orneryd/shelfsort/pkg/math/vector"
	"github.com/orneryd/shelfsort/pkg/organize"
)

// Common errors
var (
	ErrNotFound      = errors.New("storage: not found")
	ErrInvalidID     = errors.New("storage: invalid id")
	ErrInvalidData   = errors.New("storage: invalid data")
	ErrStorageClosed = errors.New("storage: closed")
)

// Document is a stored document.
//
// Embedding is Absent for documents whose embedding was never generated or
// came back empty or all zeros. Location is nil until the document has been
// placed.
type Document struct {
	ID        string
	Name      string
	Embedding vector.Embedding
	Location  *organize.Location
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlannerDocument returns the planner's view of d.
func (d *Document) PlannerDocument() organize.Document {
	return organize.Document{ID: d.ID, Name: d.Name, Current: d.Location}
}

// Engine is the document store used by the organizer.
//
// Implementations must be safe for concurrent use and return copies, so
// callers may modify returned documents freely.
type Engine interface {
	// PutDocument creates or replaces a document. CreatedAt is preserved on
	// replace; UpdatedAt is set to now.
	PutDocument(doc *Document) error

	// GetDocument returns ErrNotFound for unknown ids.
	GetDocument(id string) (*Document, error)

	// DeleteDocument returns ErrNotFound for unknown ids.
	DeleteDocument(id string) error

	// AllDocuments returns every document ordered by id.
	AllDocuments() ([]*Document, error)

	// UpdateLocation sets the location of an existing document.
	UpdateLocation(id string, loc organize.Location) error

	DocumentCount() (int64, error)

	Close() error
}

// copyDocument returns a deep copy of d.
func copyDocument(d *Document) *Document {
	if d == nil {
		return nil
	}
	out := *d
	if vec, ok := d.Embedding.Vector(); ok {
		cp := make([]float32, len(vec))
		copy(cp, vec)
		out.Embedding = vector.Present(cp)
	}
	if d.Location != nil {
		loc := *d.Location
		out.Location = &loc
	}
	return &out
}

func validateDocument(doc *Document) error {
	if doc == nil {
		return ErrInvalidData
	}
	if doc.ID == "" {
		return ErrInvalidID
	}
	return nil
}
