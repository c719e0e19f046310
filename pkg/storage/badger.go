package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/shelfsort/pkg/encryption"
	"github.com/orneryd/shelfsort/pkg/math/vector"
	"github.com/orneryd/shelfsort/pkg/organize"
)

// Key prefixes for BadgerDB storage organization.
// Using single-byte prefixes for efficiency.
const (
	prefixDocument = byte(0x01) // documents:id -> JSON(Document), sealed when encrypted
)

// BadgerEngine provides persistent storage using BadgerDB.
//
// Key Structure:
//   - Documents: 0x01 + id -> JSON(document)
//
// Values are sealed with AES-256-GCM when an Encryptor is configured.
// Iteration follows key order, so AllDocuments is ordered by id.
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("/path/to/data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
type BadgerEngine struct {
	db        *badger.DB
	encryptor *encryption.Encryptor
	mu        sync.RWMutex // Protects closed
	closed    bool
}

// BadgerOptions configures the BadgerDB engine.
type BadgerOptions struct {
	// DataDir is the directory for storing data files.
	// Required unless InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode.
	// Useful for testing. Data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write.
	SyncWrites bool

	// Logger for BadgerDB internal logging.
	// If nil, BadgerDB logging is disabled.
	Logger badger.Logger

	// BlockCacheSize in bytes. Zero uses 32MB.
	BlockCacheSize int64

	// Encryptor seals stored records. Nil stores plain JSON.
	Encryptor *encryption.Encryptor
}

// NewBadgerEngine opens a persistent engine in dataDir with default settings.
func NewBadgerEngine(dataDir string) (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{DataDir: dataDir})
}

// NewBadgerEngineWithOptions opens an engine with custom options.
func NewBadgerEngineWithOptions(opts BadgerOptions) (*BadgerEngine, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}

	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}

	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	cacheSize := opts.BlockCacheSize
	if cacheSize <= 0 {
		cacheSize = 32 << 20
	}

	// Document collections are small; keep the memory footprint low.
	badgerOpts = badgerOpts.
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithBlockCacheSize(cacheSize).
		WithIndexCacheSize(16 << 20)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	return &BadgerEngine{
		db:        db,
		encryptor: opts.Encryptor,
	}, nil
}

// NewBadgerEngineInMemory creates an in-memory BadgerDB for testing.
func NewBadgerEngineInMemory() (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{InMemory: true})
}

// ============================================================================
// Key encoding and serialization
// ============================================================================

// documentKey creates a key for storing a document.
func documentKey(id string) []byte {
	return append([]byte{prefixDocument}, []byte(id)...)
}

// serializableDocument is the JSON-serializable form of a Document.
type serializableDocument struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Embedding []float32          `json:"embedding,omitempty"`
	Location  *organize.Location `json:"location,omitempty"`
	CreatedAt int64              `json:"createdAt"`
	UpdatedAt int64              `json:"updatedAt"`
}

func (b *BadgerEngine) encodeDocument(d *Document) ([]byte, error) {
	sd := serializableDocument{
		ID:        d.ID,
		Name:      d.Name,
		Location:  d.Location,
		CreatedAt: d.CreatedAt.UnixMilli(),
		UpdatedAt: d.UpdatedAt.UnixMilli(),
	}
	if vec, ok := d.Embedding.Vector(); ok {
		sd.Embedding = vec
	}

	data, err := json.Marshal(sd)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	if b.encryptor == nil {
		return data, nil
	}
	return b.encryptor.Seal(data)
}

func (b *BadgerEngine) decodeDocument(data []byte) (*Document, error) {
	if b.encryptor != nil {
		plain, err := b.encryptor.Open(data)
		if err != nil {
			return nil, fmt.Errorf("failed to open document record: %w", err)
		}
		data = plain
	}

	var sd serializableDocument
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	return &Document{
		ID:        sd.ID,
		Name:      sd.Name,
		Embedding: vector.Present(sd.Embedding),
		Location:  sd.Location,
		CreatedAt: millisToTime(sd.CreatedAt),
		UpdatedAt: millisToTime(sd.UpdatedAt),
	}, nil
}

// millisToTime converts a Unix millisecond timestamp to time.Time.
func millisToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (b *BadgerEngine) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}
	return nil
}

// getInTxn loads and decodes the document stored under id.
func (b *BadgerEngine) getInTxn(txn *badger.Txn, id string) (*Document, error) {
	item, err := txn.Get(documentKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var doc *Document
	err = item.Value(func(val []byte) error {
		var decodeErr error
		doc, decodeErr = b.decodeDocument(val)
		return decodeErr
	})
	return doc, err
}

// ============================================================================
// Document Operations
// ============================================================================

// PutDocument creates or replaces a document.
func (b *BadgerEngine) PutDocument(doc *Document) error {
	if err := validateDocument(doc); err != nil {
		return err
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		stored := copyDocument(doc)
		now := time.Now()

		existing, err := b.getInTxn(txn, doc.ID)
		switch {
		case err == nil:
			stored.CreatedAt = existing.CreatedAt
		case errors.Is(err, ErrNotFound):
			if stored.CreatedAt.IsZero() {
				stored.CreatedAt = now
			}
		default:
			return err
		}
		stored.UpdatedAt = now

		data, err := b.encodeDocument(stored)
		if err != nil {
			return err
		}
		return txn.Set(documentKey(doc.ID), data)
	})
}

// GetDocument retrieves a document by id.
func (b *BadgerEngine) GetDocument(id string) (*Document, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var doc *Document
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		doc, err = b.getInTxn(txn, id)
		return err
	})
	return doc, err
}

// DeleteDocument removes a document.
func (b *BadgerEngine) DeleteDocument(id string) error {
	if id == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := documentKey(id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
}

// AllDocuments returns all documents ordered by id.
//
// A record that fails to decode (for example one sealed with a retired key)
// aborts the scan with an error rather than being skipped silently.
func (b *BadgerEngine) AllDocuments() ([]*Document, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var docs []*Document
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixDocument}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var doc *Document
			if err := it.Item().Value(func(val []byte) error {
				var decodeErr error
				doc, decodeErr = b.decodeDocument(val)
				return decodeErr
			}); err != nil {
				return fmt.Errorf("document %q: %w", it.Item().Key()[1:], err)
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// UpdateLocation sets the location of an existing document.
func (b *BadgerEngine) UpdateLocation(id string, loc organize.Location) error {
	if id == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		doc, err := b.getInTxn(txn, id)
		if err != nil {
			return err
		}
		doc.Location = &loc
		doc.UpdatedAt = time.Now()

		data, err := b.encodeDocument(doc)
		if err != nil {
			return err
		}
		return txn.Set(documentKey(id), data)
	})
}

// ============================================================================
// Stats and Lifecycle
// ============================================================================

// DocumentCount returns the number of documents.
func (b *BadgerEngine) DocumentCount() (int64, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}

	var count int64
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixDocument}
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

// Close closes the BadgerDB database.
func (b *BadgerEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	return b.db.Close()
}

// RunGC runs garbage collection on the BadgerDB value log.
// Returns nil when there was nothing to collect.
func (b *BadgerEngine) RunGC() error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	err := b.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

var _ Engine = (*BadgerEngine)(nil)
