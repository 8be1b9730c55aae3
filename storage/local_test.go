package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("a.csv", []byte("email\nalice@example.com\nbob@example.com")))
	assert.True(t, store.Exists("a.csv"))

	var lines []string
	require.NoError(t, store.ReadLines("a.csv", func(line string) error {
		lines = append(lines, line)
		return nil
	}))
	assert.Equal(t, []string{"email", "alice@example.com", "bob@example.com"}, lines)

	require.NoError(t, store.Delete("a.csv"))
	assert.False(t, store.Exists("a.csv"))
}

func TestLocalStoreReadMissingFile(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	err = store.ReadLines("missing.csv", func(string) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreDeleteMissingFileIsNoOp(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Delete("missing.csv"))
}

func TestLocalStoreStripsPathComponents(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("../escape.csv", []byte("x")))
	assert.True(t, store.Exists("escape.csv"))
}
