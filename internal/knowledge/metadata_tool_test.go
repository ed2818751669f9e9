package knowledge

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/labrag/backend-go/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataToolCollectionStats(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	require.NoError(t, store.RegisterDocument(ctx, DocumentInfo{
		DocumentID: "d1", Filename: "a.pdf", Format: FormatPDF, ChunkCount: 4, TokenCount: 1600,
	}))
	require.NoError(t, store.RegisterDocument(ctx, DocumentInfo{
		DocumentID: "d2", Filename: "b.pptx", Format: FormatPPTX, ChunkCount: 2, TokenCount: 800,
	}))
	require.NoError(t, store.RegisterDocument(ctx, DocumentInfo{
		DocumentID: "d3", Filename: "c.pdf", Format: FormatPDF, ChunkCount: 6, TokenCount: 2400,
	}))

	tool := NewMetadataTool(store)
	stats, err := tool.CollectionStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.DocumentCount)
	assert.Equal(t, 12, stats.ChunkCount)
	assert.Equal(t, 4800, stats.TokenCount)
	assert.Equal(t, 2, stats.ByFormat[FormatPDF])
	assert.Equal(t, 1, stats.ByFormat[FormatPPTX])
	assert.InDelta(t, 4.0, stats.AvgChunksPerDoc, 0.001)
}

func TestMetadataToolEmptyCollection(t *testing.T) {
	tool := NewMetadataTool(newFakeStore())

	stats, err := tool.CollectionStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.DocumentCount)
	assert.Zero(t, stats.AvgChunksPerDoc)

	infos, err := tool.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestMetadataToolGetDocumentInfoNotFound(t *testing.T) {
	tool := NewMetadataTool(newFakeStore())

	_, err := tool.GetDocumentInfo(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeResourceNotFound, apperrors.GetAppError(err).Code)
}

func TestMetadataToolFindByFilename(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	require.NoError(t, store.RegisterDocument(ctx, DocumentInfo{DocumentID: "d1", Filename: "a.pdf"}))
	require.NoError(t, store.RegisterDocument(ctx, DocumentInfo{DocumentID: "d2", Filename: "a.pdf"}))
	require.NoError(t, store.RegisterDocument(ctx, DocumentInfo{DocumentID: "d3", Filename: "b.pdf"}))

	tool := NewMetadataTool(store)
	matched, err := tool.FindByFilename(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Len(t, matched, 2)

	matched, err = tool.FindByFilename(ctx, "missing.pdf")
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestFormatDocumentList(t *testing.T) {
	assert.Equal(t, "知识库为空。", FormatDocumentList(nil))

	out := FormatDocumentList([]DocumentInfo{
		{Filename: "a.pdf", Format: FormatPDF, ChunkCount: 3, IngestedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	})
	assert.Contains(t, out, "共1份文档")
	assert.Contains(t, out, "a.pdf")
	assert.Contains(t, out, "3个分块")
}
