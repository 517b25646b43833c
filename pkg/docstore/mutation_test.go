package docstore_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/docstore/pkg/docstore"
)

func decodeMapFile(t *testing.T, path string) map[string]int {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var v map[string]int
	require.NoError(t, json.Unmarshal(data, &v))

	return v
}

func openMapStore(t *testing.T) (*docstore.Store[map[string]int], string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "value.json")

	store, err := docstore.Open(docstore.Options[map[string]int]{
		Path:       path,
		Serializer: docstore.JSONSerializer[map[string]int]{},
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store, path
}

func TestMutation_CallerMutatesReturnedValue_NextUpdateFails(t *testing.T) {
	t.Parallel()

	store, path := openMapStore(t)

	v, err := store.Update(t.Context(), func(map[string]int) (map[string]int, error) {
		return map[string]int{"count": 1}, nil
	})
	require.NoError(t, err)

	// The caller mutates the value it got back. The cache holds the same
	// map, so its fingerprint no longer matches.
	v["count"] = 999

	_, err = store.Update(t.Context(), func(m map[string]int) (map[string]int, error) {
		return m, nil
	})
	require.ErrorIs(t, err, docstore.ErrValueMutated)

	// Disk still carries the last cleanly persisted value.
	data := decodeMapFile(t, path)
	assert.Equal(t, map[string]int{"count": 1}, data)
}

func TestMutation_TransformMutatesItsInput_Fails(t *testing.T) {
	t.Parallel()

	store, _ := openMapStore(t)

	_, err := store.Update(t.Context(), func(map[string]int) (map[string]int, error) {
		return map[string]int{"count": 1}, nil
	})
	require.NoError(t, err)

	_, err = store.Update(t.Context(), func(m map[string]int) (map[string]int, error) {
		// Mutating the current value instead of copying it.
		m["stray"] = 9

		return map[string]int{"count": 2}, nil
	})
	require.ErrorIs(t, err, docstore.ErrValueMutated)
}

func TestMutation_HonestCopy_Succeeds(t *testing.T) {
	t.Parallel()

	store, _ := openMapStore(t)

	_, err := store.Update(t.Context(), func(map[string]int) (map[string]int, error) {
		return map[string]int{"count": 1}, nil
	})
	require.NoError(t, err)

	v, err := store.Update(t.Context(), func(m map[string]int) (map[string]int, error) {
		next := make(map[string]int, len(m)+1)
		for k, val := range m {
			next[k] = val
		}

		next["count"]++

		return next, nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"count": 2}, v)
}
