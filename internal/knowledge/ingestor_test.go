package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	apperrors "github.com/labrag/backend-go/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeParser 返回固定的结构单元
type fakeParser struct {
	units []StructuralUnit
	err   error
}

func (p *fakeParser) Parse(data []byte, filename string) ([]StructuralUnit, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.units, nil
}

func (p *fakeParser) Supports(filename string) bool { return true }

// fakeEmbedder 产出确定性的单位向量
type fakeEmbedder struct {
	dim        int
	err        error
	batchCalls int
}

func (e *fakeEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dim)
	v[len(text)%e.dim] = 1
	return v
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batchCalls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

func (e *fakeEmbedder) Dimensions() int { return e.dim }

func (e *fakeEmbedder) Model() string { return "fake-embedding" }

func (e *fakeEmbedder) Ready() bool { return true }

// fakeStore 内存向量存储，记录调用情况
type fakeStore struct {
	mu          sync.Mutex
	records     map[string]IndexRecord
	docs        map[string]DocumentInfo
	upsertCalls int
	deleteCalls int
	upsertErr   error
	queryResult []ScoredRecord
	queryErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]IndexRecord),
		docs:    make(map[string]DocumentInfo),
	}
}

func (s *fakeStore) Upsert(ctx context.Context, records []IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	if s.upsertErr != nil {
		return s.upsertErr
	}
	for _, r := range records {
		s.records[r.ChunkID] = r
	}
	return nil
}

func (s *fakeStore) Query(ctx context.Context, embedding []float32, topK int, filter *QueryFilter) ([]ScoredRecord, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.queryResult, nil
}

func (s *fakeStore) DeleteDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	for id, r := range s.records {
		if r.DocumentID == documentID {
			delete(s.records, id)
		}
	}
	delete(s.docs, documentID)
	return nil
}

func (s *fakeStore) RegisterDocument(ctx context.Context, info DocumentInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[info.DocumentID] = info
	return nil
}

func (s *fakeStore) GetDocumentInfo(ctx context.Context, documentID string) (*DocumentInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.docs[documentID]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func (s *fakeStore) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]DocumentInfo, 0, len(s.docs))
	for _, info := range s.docs {
		infos = append(infos, info)
	}
	return infos, nil
}

func (s *fakeStore) Ready() bool { return true }

func (s *fakeStore) Close() error { return nil }

func testUnits(tokens int) []StructuralUnit {
	return []StructuralUnit{
		{Ordinal: 0, Locator: "Page 1", Kind: UnitKindBody, Text: words("body", tokens)},
	}
}

func newTestIngestor(parser DocumentParser, embedder Embedder, store VectorStore) *Ingestor {
	return NewIngestor(parser, NewChunker(300, 600, 75), embedder, store, nil)
}

func TestIngestorSuccess(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{dim: 4}
	ing := newTestIngestor(&fakeParser{units: testUnits(400)}, embedder, store)

	summary, err := ing.Ingest(context.Background(), "report.pdf", []byte("pdf bytes"), IngestOptions{})
	require.NoError(t, err)

	assert.Equal(t, NewDocument("report.pdf", []byte("pdf bytes"), FormatPDF).ID, summary.DocumentID)
	assert.Equal(t, FormatPDF, summary.Format)
	assert.False(t, summary.AlreadyIngested)
	assert.False(t, summary.Replaced)
	assert.Equal(t, 1, summary.ChunkCount)
	assert.Equal(t, 400, summary.TokenCount)

	// 分块与文档元信息都已入库，且每个分块都带向量
	assert.Len(t, store.records, 1)
	for _, r := range store.records {
		assert.NotEmpty(t, r.Embedding)
		assert.Equal(t, "report.pdf", r.Filename)
		assert.Equal(t, "Page 1", r.Locator)
	}
	info, err := store.GetDocumentInfo(context.Background(), summary.DocumentID)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 1, info.ChunkCount)
}

func TestIngestorIdempotentReupload(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{dim: 4}
	ing := newTestIngestor(&fakeParser{units: testUnits(400)}, embedder, store)

	first, err := ing.Ingest(context.Background(), "report.pdf", []byte("same bytes"), IngestOptions{})
	require.NoError(t, err)

	// 相同内容重复上传是空操作
	second, err := ing.Ingest(context.Background(), "report.pdf", []byte("same bytes"), IngestOptions{})
	require.NoError(t, err)
	assert.True(t, second.AlreadyIngested)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Equal(t, 1, store.upsertCalls)
	assert.Equal(t, 1, embedder.batchCalls)
}

func TestIngestorReplace(t *testing.T) {
	store := newFakeStore()
	ing := newTestIngestor(&fakeParser{units: testUnits(400)}, &fakeEmbedder{dim: 4}, store)

	_, err := ing.Ingest(context.Background(), "report.pdf", []byte("same bytes"), IngestOptions{})
	require.NoError(t, err)

	summary, err := ing.Ingest(context.Background(), "report.pdf", []byte("same bytes"), IngestOptions{Replace: true})
	require.NoError(t, err)
	assert.True(t, summary.Replaced)
	assert.False(t, summary.AlreadyIngested)
	assert.Equal(t, 1, store.deleteCalls)
	assert.Equal(t, 2, store.upsertCalls)
}

func TestIngestorEmbeddingFailureLeavesNothing(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{dim: 4, err: errors.New("rate limited")}
	ing := newTestIngestor(&fakeParser{units: testUnits(400)}, embedder, store)

	_, err := ing.Ingest(context.Background(), "report.pdf", []byte("pdf bytes"), IngestOptions{})
	require.Error(t, err)

	var report *FailureReport
	require.ErrorAs(t, err, &report)
	assert.Equal(t, StageEmbedded, report.Stage)

	// 全有或全无：失败的摄取不留下任何记录
	assert.Empty(t, store.records)
	assert.Empty(t, store.docs)
	assert.Equal(t, 0, store.upsertCalls)
}

func TestIngestorParserFailure(t *testing.T) {
	store := newFakeStore()
	ing := newTestIngestor(&fakeParser{err: errors.New("corrupt file")}, &fakeEmbedder{dim: 4}, store)

	_, err := ing.Ingest(context.Background(), "report.pdf", []byte("pdf bytes"), IngestOptions{})
	require.Error(t, err)

	var report *FailureReport
	require.ErrorAs(t, err, &report)
	assert.Equal(t, StageParsed, report.Stage)
	assert.Empty(t, store.records)
	assert.Empty(t, store.docs)
}

func TestIngestorUnsupportedFormat(t *testing.T) {
	ing := newTestIngestor(&fakeParser{}, &fakeEmbedder{dim: 4}, newFakeStore())

	_, err := ing.Ingest(context.Background(), "notes.txt", []byte("text"), IngestOptions{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnsupportedFormat, apperrors.GetAppError(err).Code)
}

func TestIngestorEmptyFile(t *testing.T) {
	ing := newTestIngestor(&fakeParser{}, &fakeEmbedder{dim: 4}, newFakeStore())

	_, err := ing.Ingest(context.Background(), "report.pdf", nil, IngestOptions{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetAppError(err).Code)
}

func TestIngestorDelete(t *testing.T) {
	store := newFakeStore()
	ing := newTestIngestor(&fakeParser{units: testUnits(400)}, &fakeEmbedder{dim: 4}, store)

	summary, err := ing.Ingest(context.Background(), "report.pdf", []byte("pdf bytes"), IngestOptions{})
	require.NoError(t, err)

	require.NoError(t, ing.Delete(context.Background(), summary.DocumentID))
	assert.Empty(t, store.records)
	assert.Empty(t, store.docs)

	// 再次删除返回未找到
	err = ing.Delete(context.Background(), summary.DocumentID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeResourceNotFound, apperrors.GetAppError(err).Code)
}

func TestIngestorChunkIDsDeterministic(t *testing.T) {
	store := newFakeStore()
	ing := newTestIngestor(&fakeParser{units: testUnits(1000)}, &fakeEmbedder{dim: 4}, store)

	summary, err := ing.Ingest(context.Background(), "report.pdf", []byte("pdf bytes"), IngestOptions{})
	require.NoError(t, err)
	require.Greater(t, summary.ChunkCount, 1)

	for i := 0; i < summary.ChunkCount; i++ {
		id := ChunkID(summary.DocumentID, i)
		_, ok := store.records[id]
		assert.True(t, ok, fmt.Sprintf("missing chunk %s", id))
	}
}
