package knowledge

import (
	"context"
	"testing"

	apperrors "github.com/labrag/backend-go/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrieverRetrieve(t *testing.T) {
	store := newFakeStore()
	store.queryResult = []ScoredRecord{
		{
			Record: IndexRecord{
				ChunkID:    "doc1-0002",
				DocumentID: "doc1",
				Filename:   "results.pptx",
				Format:     FormatPPTX,
				Locator:    "Slide 4: Results",
				Text:       "the measured value was 42",
			},
			Score: 0.91,
		},
		{
			Record: IndexRecord{
				ChunkID:    "doc2-0000",
				DocumentID: "doc2",
				Filename:   "protocol.docx",
				Format:     FormatDOCX,
				Locator:    "Methods",
				Text:       "stir for ten minutes",
			},
			Score: 0.73,
		},
	}

	r := NewRetriever(&fakeEmbedder{dim: 4}, store, 5, 50)
	chunks, err := r.Retrieve(context.Background(), "measured value", 0, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "results.pptx — Slide 4: Results", chunks[0].Citation)
	assert.Equal(t, "the measured value was 42", chunks[0].Text)
	assert.Equal(t, float32(0.91), chunks[0].Score)
	assert.Equal(t, "protocol.docx — Methods", chunks[1].Citation)
}

func TestRetrieverEmptyQuery(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{dim: 4}, newFakeStore(), 5, 50)

	_, err := r.Retrieve(context.Background(), "   ", 3, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetAppError(err).Code)
}

// 空库检索是成功返回，不是错误
func TestRetrieverEmptyStore(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{dim: 4}, newFakeStore(), 5, 50)

	chunks, err := r.Retrieve(context.Background(), "anything", 3, nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestRetrieverEmbedderFailure(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{dim: 4, err: assert.AnError}, newFakeStore(), 5, 50)

	_, err := r.Retrieve(context.Background(), "anything", 3, nil)
	assert.Error(t, err)
}

func TestFormatContext(t *testing.T) {
	chunks := []CitedChunk{
		{Citation: "results.pptx — Slide 4", Text: "value was 42"},
		{Citation: "protocol.docx — Methods", Text: "stir for ten minutes"},
	}

	out := FormatContext(chunks)
	assert.Contains(t, out, "[1] results.pptx — Slide 4\nvalue was 42")
	assert.Contains(t, out, "[2] protocol.docx — Methods\nstir for ten minutes")

	assert.Equal(t, "未检索到相关内容。", FormatContext(nil))
}
