package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/orneryd/shelfsort/pkg/organize"
)

// MemoryEngine keeps documents in RAM. Data is lost on Close.
//
// Example:
//
//	func TestOrganize(t *testing.T) {
//		engine := storage.NewMemoryEngine()
//		defer engine.Close()
//		engine.PutDocument(&storage.Document{ID: "doc-1", Embedding: vector.Present(v)})
//	}
//
// Thread Safety:
//
//	Safe for concurrent use from multiple goroutines.
type MemoryEngine struct {
	mu     sync.RWMutex
	docs   map[string]*Document
	closed bool

	now func() time.Time
}

// NewMemoryEngine creates an empty in-memory engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		docs: make(map[string]*Document),
		now:  time.Now,
	}
}

// PutDocument creates or replaces a document.
func (m *MemoryEngine) PutDocument(doc *Document) error {
	if err := validateDocument(doc); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}

	stored := copyDocument(doc)
	now := m.now()
	if existing, ok := m.docs[doc.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.docs[doc.ID] = stored
	return nil
}

// GetDocument retrieves a document by id.
func (m *MemoryEngine) GetDocument(id string) (*Document, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(doc), nil
}

// DeleteDocument removes a document.
func (m *MemoryEngine) DeleteDocument(id string) error {
	if id == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

// AllDocuments returns copies of all documents ordered by id.
func (m *MemoryEngine) AllDocuments() ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	docs := make([]*Document, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, copyDocument(doc))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// UpdateLocation sets the location of an existing document.
func (m *MemoryEngine) UpdateLocation(id string, loc organize.Location) error {
	if id == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	doc, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	doc.Location = &loc
	doc.UpdatedAt = m.now()
	return nil
}

// DocumentCount returns the number of documents.
func (m *MemoryEngine) DocumentCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.docs)), nil
}

// Close drops all documents. Further calls return ErrStorageClosed.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.docs = nil
	return nil
}

var _ Engine = (*MemoryEngine)(nil)
