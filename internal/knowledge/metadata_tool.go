package knowledge

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/labrag/backend-go/internal/errors"
)

// CollectionStats 知识库整体统计
type CollectionStats struct {
	DocumentCount   int            `json:"document_count"`
	ChunkCount      int            `json:"chunk_count"`
	TokenCount      int            `json:"token_count"`
	ByFormat        map[Format]int `json:"by_format"`
	AvgChunksPerDoc float64        `json:"avg_chunks_per_doc"`
}

// MetadataTool 文档元数据查询工具
type MetadataTool struct {
	store VectorStore
}

// NewMetadataTool 创建元数据查询工具
func NewMetadataTool(store VectorStore) *MetadataTool {
	return &MetadataTool{store: store}
}

// ListDocuments 列出全部已入库文档
func (t *MetadataTool) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	return t.store.ListDocuments(ctx)
}

// GetDocumentInfo 按文档ID查询元信息，不存在时返回NotFound错误
func (t *MetadataTool) GetDocumentInfo(ctx context.Context, documentID string) (*DocumentInfo, error) {
	info, err := t.store.GetDocumentInfo(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, apperrors.NewNotFoundError("document")
	}
	return info, nil
}

// FindByFilename 按文件名查找文档（同名文件可能有多个版本）
func (t *MetadataTool) FindByFilename(ctx context.Context, filename string) ([]DocumentInfo, error) {
	infos, err := t.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	var matched []DocumentInfo
	for _, info := range infos {
		if info.Filename == filename {
			matched = append(matched, info)
		}
	}
	return matched, nil
}

// CollectionStats 统计知识库的文档、分块、词元总量
func (t *MetadataTool) CollectionStats(ctx context.Context) (*CollectionStats, error) {
	infos, err := t.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	stats := &CollectionStats{ByFormat: make(map[Format]int)}
	for _, info := range infos {
		stats.DocumentCount++
		stats.ChunkCount += info.ChunkCount
		stats.TokenCount += info.TokenCount
		stats.ByFormat[info.Format]++
	}
	if stats.DocumentCount > 0 {
		stats.AvgChunksPerDoc = float64(stats.ChunkCount) / float64(stats.DocumentCount)
	}
	return stats, nil
}

// FormatDocumentList 将文档列表格式化为可读文本
func FormatDocumentList(infos []DocumentInfo) string {
	if len(infos) == 0 {
		return "知识库为空。"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("共%d份文档:\n", len(infos)))
	for _, info := range infos {
		sb.WriteString(fmt.Sprintf("- %s (%s, %d个分块, 入库于 %s)\n",
			info.Filename, info.Format, info.ChunkCount,
			info.IngestedAt.Format("2006-01-02 15:04")))
	}
	return sb.String()
}
