package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestSaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	in := map[string]string{"folio": "ORD-001"}
	require.NoError(t, store.Save("orders", in))

	var out map[string]string
	ok, err := store.Load("orders", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in, out)
}

func TestLoadAbsentDocument(t *testing.T) {
	store := newTestStore(t)

	var out []string
	ok, err := store.Load("missing", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadCorruptDocument(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "reports.json"), []byte("{not json"), 0o644))

	var out []string
	ok, err := store.Load("reports", &out)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save("doc", []int{1, 2, 3}))
	require.NoError(t, store.Save("doc", []int{9}))

	var out []int
	_, err := store.Load("doc", &out)
	require.NoError(t, err)
	assert.Equal(t, []int{9}, out)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save("doc", "x"))
	require.NoError(t, store.Delete("doc"))
	require.NoError(t, store.Delete("doc"))

	var out string
	ok, err := store.Load("doc", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearWritesEmptyArray(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save("reports", []int{1, 2}))
	require.NoError(t, store.Clear("reports"))

	var out []int
	ok, err := store.Load("reports", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, out)
}

func TestInvalidNamesRejected(t *testing.T) {
	store := newTestStore(t)
	for _, name := range []string{"", "../escape", "a/b", `a\b`} {
		err := store.Save(name, "x")
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}
}

// Concurrent read-modify-write cycles through Update must not lose counts:
// the per-document lock serializes them.
func TestUpdateSerializesWriters(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save("counter", []int{}))

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := store.Update("counter", func() (interface{}, error) {
				var items []int
				if _, err := store.Load("counter", &items); err != nil {
					return nil, err
				}
				return append(items, n), nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	var items []int
	_, err := store.Load("counter", &items)
	require.NoError(t, err)
	assert.Len(t, items, writers)
}

func TestUpdateAbortsWithoutWriting(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save("doc", "before"))

	err := store.Update("doc", func() (interface{}, error) {
		return nil, fmt.Errorf("rejected")
	})
	assert.Error(t, err)

	var out string
	_, err = store.Load("doc", &out)
	require.NoError(t, err)
	assert.Equal(t, "before", out)
}
