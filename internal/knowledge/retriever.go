package knowledge

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/labrag/backend-go/internal/errors"
	"github.com/labrag/backend-go/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// CitedChunk 检索结果，文本与可溯源引用成对出现
type CitedChunk struct {
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
	Filename   string  `json:"filename"`
	Locator    string  `json:"locator"`
	DocumentID string  `json:"document_id"`
	Citation   string  `json:"citation"`
}

// Retriever 语义检索工具。
// 查询向量与索引向量来自同一个Embedder，过滤先于排序执行。
type Retriever struct {
	embedder    Embedder
	store       VectorStore
	defaultTopK int
	maxTopK     int
}

// NewRetriever 创建检索工具
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK, maxTopK int) *Retriever {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	if maxTopK < defaultTopK {
		maxTopK = defaultTopK * 10
	}
	return &Retriever{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
	}
}

// Retrieve 检索与查询最相关的topK个分块。空结果是合法的成功返回。
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, filter *QueryFilter) ([]CitedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewValidationError("查询内容不能为空")
	}
	if topK <= 0 {
		topK = r.defaultTopK
	}
	if topK > r.maxTopK {
		topK = r.maxTopK
	}

	timer := prometheus.NewTimer(metrics.QueryDuration)
	defer timer.ObserveDuration()

	embedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := r.store.Query(ctx, embedding, topK, filter)
	if err != nil {
		return nil, err
	}

	cited := make([]CitedChunk, 0, len(results))
	for _, scored := range results {
		record := scored.Record
		cited = append(cited, CitedChunk{
			Text:       record.Text,
			Score:      scored.Score,
			Filename:   record.Filename,
			Locator:    record.Locator,
			DocumentID: record.DocumentID,
			Citation:   Citation(record.Filename, record.Locator),
		})
	}
	return cited, nil
}

// FormatContext 将检索结果拼装为可直接注入提示词的上下文文本
func FormatContext(chunks []CitedChunk) string {
	if len(chunks) == 0 {
		return "未检索到相关内容。"
	}
	var sb strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("[%d] %s\n%s", i+1, chunk.Citation, chunk.Text))
	}
	return sb.String()
}
