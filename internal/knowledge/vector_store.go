package knowledge

import (
	"context"
	"sort"
	"time"
)

// IndexRecord 向量索引记录，入库的最小单位
type IndexRecord struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Format     Format    `json:"format"`
	Locator    string    `json:"locator"`
	ChunkIndex int       `json:"chunk_index"`
	TokenCount int       `json:"token_count"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
	IngestedAt time.Time `json:"ingested_at"`
}

// QueryFilter 元数据过滤条件，先过滤再排序
type QueryFilter struct {
	DocumentID string `json:"document_id,omitempty"`
	Filename   string `json:"filename,omitempty"`
	Format     Format `json:"format,omitempty"`
}

// Empty 判断过滤条件是否为空
func (f *QueryFilter) Empty() bool {
	return f == nil || (f.DocumentID == "" && f.Filename == "" && f.Format == "")
}

// ScoredRecord 带相似度得分的检索结果
type ScoredRecord struct {
	Record IndexRecord `json:"record"`
	Score  float32     `json:"score"`
}

// VectorStore 向量存储抽象。
// Upsert按分块ID幂等；Query先过滤后按相似度降序排序，
// 得分相同时按分块ID升序，空结果不是错误。
type VectorStore interface {
	Upsert(ctx context.Context, records []IndexRecord) error
	Query(ctx context.Context, embedding []float32, topK int, filter *QueryFilter) ([]ScoredRecord, error)
	DeleteDocument(ctx context.Context, documentID string) error
	RegisterDocument(ctx context.Context, info DocumentInfo) error
	GetDocumentInfo(ctx context.Context, documentID string) (*DocumentInfo, error)
	ListDocuments(ctx context.Context) ([]DocumentInfo, error)
	Ready() bool
	Close() error
}

// sortScored 按得分降序排序，得分相同时按分块ID升序保证结果可复现
func sortScored(results []ScoredRecord) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.ChunkID < results[j].Record.ChunkID
	})
}
