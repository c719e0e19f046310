package storage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/shelfsort/pkg/encryption"
	"github.com/orneryd/shelfsort/pkg/math/vector"
	"github.com/orneryd/shelfsort/pkg/organize"
)

// engineFactories runs each test against every Engine implementation.
func engineFactories(t *testing.T) map[string]func() Engine {
	t.Helper()
	return map[string]func() Engine{
		"memory": func() Engine { return NewMemoryEngine() },
		"badger": func() Engine {
			engine, err := NewBadgerEngineInMemory()
			require.NoError(t, err)
			return engine
		},
		"badger-encrypted": func() Engine {
			enc, err := encryption.NewEncryptor("secret", encryption.Options{Iterations: 1000})
			require.NoError(t, err)
			engine, err := NewBadgerEngineWithOptions(BadgerOptions{InMemory: true, Encryptor: enc})
			require.NoError(t, err)
			return engine
		},
	}
}

func TestEngine_PutGet(t *testing.T) {
	for name, newEngine := range engineFactories(t) {
		t.Run(name, func(t *testing.T) {
			engine := newEngine()
			defer engine.Close()

			doc := &Document{
				ID:        "doc-1",
				Name:      "Invoice March",
				Embedding: vector.Present([]float32{0.1, 0.2, 0.3}),
				Location:  &organize.Location{Shelf: 2, Folder: "C"},
			}
			require.NoError(t, engine.PutDocument(doc))

			got, err := engine.GetDocument("doc-1")
			require.NoError(t, err)
			assert.Equal(t, "Invoice March", got.Name)
			vec, ok := got.Embedding.Vector()
			require.True(t, ok)
			assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
			require.NotNil(t, got.Location)
			assert.Equal(t, organize.Location{Shelf: 2, Folder: "C"}, *got.Location)
			assert.False(t, got.CreatedAt.IsZero())
			assert.False(t, got.UpdatedAt.IsZero())
		})
	}
}

func TestEngine_AbsentEmbedding(t *testing.T) {
	for name, newEngine := range engineFactories(t) {
		t.Run(name, func(t *testing.T) {
			engine := newEngine()
			defer engine.Close()

			require.NoError(t, engine.PutDocument(&Document{ID: "blank", Embedding: vector.Present([]float32{0, 0})}))

			got, err := engine.GetDocument("blank")
			require.NoError(t, err)
			assert.False(t, got.Embedding.IsPresent())
			assert.Nil(t, got.Location)
		})
	}
}

func TestEngine_ReplacePreservesCreatedAt(t *testing.T) {
	for name, newEngine := range engineFactories(t) {
		t.Run(name, func(t *testing.T) {
			engine := newEngine()
			defer engine.Close()

			require.NoError(t, engine.PutDocument(&Document{ID: "d", Name: "first"}))
			first, err := engine.GetDocument("d")
			require.NoError(t, err)

			require.NoError(t, engine.PutDocument(&Document{ID: "d", Name: "second"}))
			second, err := engine.GetDocument("d")
			require.NoError(t, err)

			assert.Equal(t, "second", second.Name)
			assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

			count, err := engine.DocumentCount()
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})
	}
}

func TestEngine_AllDocumentsOrderedByID(t *testing.T) {
	for name, newEngine := range engineFactories(t) {
		t.Run(name, func(t *testing.T) {
			engine := newEngine()
			defer engine.Close()

			for _, id := range []string{"c", "a", "d", "b"} {
				require.NoError(t, engine.PutDocument(&Document{ID: id}))
			}

			docs, err := engine.AllDocuments()
			require.NoError(t, err)
			ids := make([]string, len(docs))
			for i, d := range docs {
				ids[i] = d.ID
			}
			assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
		})
	}
}

func TestEngine_UpdateLocationAndDelete(t *testing.T) {
	for name, newEngine := range engineFactories(t) {
		t.Run(name, func(t *testing.T) {
			engine := newEngine()
			defer engine.Close()

			require.NoError(t, engine.PutDocument(&Document{ID: "d", Embedding: vector.Present([]float32{1})}))
			require.NoError(t, engine.UpdateLocation("d", organize.Location{Shelf: 1, Folder: "B"}))

			got, err := engine.GetDocument("d")
			require.NoError(t, err)
			require.NotNil(t, got.Location)
			assert.Equal(t, "1B", got.Location.String())
			assert.True(t, got.Embedding.IsPresent(), "location update keeps the embedding")

			assert.ErrorIs(t, engine.UpdateLocation("missing", organize.Location{Shelf: 1, Folder: "A"}), ErrNotFound)

			require.NoError(t, engine.DeleteDocument("d"))
			_, err = engine.GetDocument("d")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, engine.DeleteDocument("d"), ErrNotFound)
		})
	}
}

func TestEngine_InvalidInput(t *testing.T) {
	for name, newEngine := range engineFactories(t) {
		t.Run(name, func(t *testing.T) {
			engine := newEngine()
			defer engine.Close()

			assert.ErrorIs(t, engine.PutDocument(nil), ErrInvalidData)
			assert.ErrorIs(t, engine.PutDocument(&Document{}), ErrInvalidID)
			_, err := engine.GetDocument("")
			assert.ErrorIs(t, err, ErrInvalidID)
			assert.ErrorIs(t, engine.DeleteDocument(""), ErrInvalidID)
		})
	}
}

func TestEngine_ReturnsCopies(t *testing.T) {
	for name, newEngine := range engineFactories(t) {
		t.Run(name, func(t *testing.T) {
			engine := newEngine()
			defer engine.Close()

			vec := []float32{1, 2}
			require.NoError(t, engine.PutDocument(&Document{ID: "d", Embedding: vector.Present(vec)}))
			vec[0] = 99

			got, err := engine.GetDocument("d")
			require.NoError(t, err)
			stored, _ := got.Embedding.Vector()
			assert.Equal(t, float32(1), stored[0])
		})
	}
}

func TestEngine_Closed(t *testing.T) {
	for name, newEngine := range engineFactories(t) {
		t.Run(name, func(t *testing.T) {
			engine := newEngine()
			require.NoError(t, engine.Close())

			assert.ErrorIs(t, engine.PutDocument(&Document{ID: "d"}), ErrStorageClosed)
			_, err := engine.GetDocument("d")
			assert.ErrorIs(t, err, ErrStorageClosed)
			_, err = engine.AllDocuments()
			assert.ErrorIs(t, err, ErrStorageClosed)
			_, err = engine.DocumentCount()
			assert.ErrorIs(t, err, ErrStorageClosed)
		})
	}
}

func TestEngine_ConcurrentPuts(t *testing.T) {
	for name, newEngine := range engineFactories(t) {
		t.Run(name, func(t *testing.T) {
			engine := newEngine()
			defer engine.Close()

			var wg sync.WaitGroup
			for w := 0; w < 8; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < 10; i++ {
						id := fmt.Sprintf("w%d-%d", w, i)
						assert.NoError(t, engine.PutDocument(&Document{ID: id}))
					}
				}(w)
			}
			wg.Wait()

			count, err := engine.DocumentCount()
			require.NoError(t, err)
			assert.Equal(t, int64(80), count)
		})
	}
}

func TestBadgerEngine_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	engine, err := NewBadgerEngine(dir)
	require.NoError(t, err)
	require.NoError(t, engine.PutDocument(&Document{ID: "keep", Name: "kept", Embedding: vector.Present([]float32{0.5})}))
	require.NoError(t, engine.Close())

	reopened, err := NewBadgerEngine(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetDocument("keep")
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Name)
	assert.NoError(t, reopened.RunGC())
}

func TestBadgerEngine_WrongKeyRejected(t *testing.T) {
	dir := t.TempDir()

	enc, err := encryption.NewEncryptor("right", encryption.Options{Iterations: 1000})
	require.NoError(t, err)
	engine, err := NewBadgerEngineWithOptions(BadgerOptions{DataDir: dir, Encryptor: enc})
	require.NoError(t, err)
	require.NoError(t, engine.PutDocument(&Document{ID: "secret"}))
	require.NoError(t, engine.Close())

	wrong, err := encryption.NewEncryptor("wrong", encryption.Options{Iterations: 1000})
	require.NoError(t, err)
	reopened, err := NewBadgerEngineWithOptions(BadgerOptions{DataDir: dir, Encryptor: wrong})
	require.NoError(t, err)
	defer reopened.Close()

	_, err = reopened.GetDocument("secret")
	assert.ErrorIs(t, err, encryption.ErrDecryptionFailed)
	_, err = reopened.AllDocuments()
	assert.ErrorIs(t, err, encryption.ErrDecryptionFailed)
}

func TestDocument_PlannerDocument(t *testing.T) {
	loc := &organize.Location{Shelf: 1, Folder: "A"}
	d := &Document{ID: "d", Name: "n", Location: loc}
	assert.Equal(t, organize.Document{ID: "d", Name: "n", Current: loc}, d.PlannerDocument())
}
