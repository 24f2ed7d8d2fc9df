package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DocumentStore {
	t.Helper()
	database, err := Init(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	return NewDocumentStore(database)
}

func TestDocumentStoreSaveAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.Save(ctx, "report.pdf", "/tmp/a_report.pdf")
	require.NoError(t, err)
	second, err := store.Save(ctx, "notes.pdf", "/tmp/b_notes.pdf")
	require.NoError(t, err)
	assert.Less(t, first, second)

	docs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "report.pdf", docs[0].Filename)
	assert.Equal(t, "notes.pdf", docs[1].Filename)

	_, err = time.Parse(time.RFC3339, docs[0].UploadDate)
	assert.NoError(t, err)
}

func TestDocumentStoreGetFilename(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.Save(ctx, "paper.pdf", "/tmp/paper.pdf")
	require.NoError(t, err)

	t.Run("existing id", func(t *testing.T) {
		name, found, err := store.GetFilename(ctx, id)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "paper.pdf", name)
	})

	t.Run("unknown id", func(t *testing.T) {
		name, found, err := store.GetFilename(ctx, id+100)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, name)
	})
}

func TestDocumentStoreUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.Save(ctx, "paper.pdf", "/tmp/paper.pdf")
	require.NoError(t, err)

	require.NoError(t, store.UpdateChunkCount(ctx, id, 12))
	doc, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, 12, doc.NumChunks)
	assert.Equal(t, "/tmp/paper.pdf", doc.StoredPath)

	require.NoError(t, store.Delete(ctx, id))
	doc, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, doc)

	docs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}
