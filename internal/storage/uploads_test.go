package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadStoreSaveAndPath(t *testing.T) {
	dir := t.TempDir()
	store, err := NewUploadStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save("doc1", "Report.PDF", []byte("raw content")))

	path, ok := store.Path("doc1")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "doc1.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw content"), data)

	// 重复保存是幂等覆盖
	require.NoError(t, store.Save("doc1", "Report.PDF", []byte("raw content")))
}

func TestUploadStoreRemove(t *testing.T) {
	store, err := NewUploadStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("doc1", "deck.pptx", []byte("bytes")))
	require.NoError(t, store.Remove("doc1"))

	_, ok := store.Path("doc1")
	assert.False(t, ok)

	// 删除不存在的文档不是错误
	assert.NoError(t, store.Remove("missing"))
}

func TestUploadStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	_, err := NewUploadStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
