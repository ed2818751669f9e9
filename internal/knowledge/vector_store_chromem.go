package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/labrag/backend-go/internal/errors"
	chromem "github.com/philippgille/chromem-go"
)

const manifestFileName = "documents.json"

// ChromemOptions 本地向量存储配置
type ChromemOptions struct {
	Path       string
	Collection string
}

// chromemVectorStore 基于chromem-go的本地持久化向量存储。
// 向量数据由chromem落盘，文档清单以JSON形式保存在同一目录下，
// 二者共同构成索引的全部持久状态。
type chromemVectorStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	path       string

	mu       sync.RWMutex
	manifest map[string]DocumentInfo
}

// NewChromemVectorStore 创建本地持久化向量存储
func NewChromemVectorStore(opts ChromemOptions) (VectorStore, error) {
	if opts.Path == "" {
		opts.Path = "./data/chroma"
	}
	if opts.Collection == "" {
		opts.Collection = "lab_documents"
	}

	db, err := chromem.NewPersistentDB(opts.Path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem db: %w", err)
	}

	collection, err := db.GetOrCreateCollection(opts.Collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}

	s := &chromemVectorStore{
		db:         db,
		collection: collection,
		path:       opts.Path,
		manifest:   make(map[string]DocumentInfo),
	}
	if err := s.loadManifest(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *chromemVectorStore) Upsert(ctx context.Context, records []IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(records))
	for _, r := range records {
		if len(r.Embedding) == 0 {
			return apperrors.NewStoreError(fmt.Sprintf("分块缺少向量: %s", r.ChunkID), nil)
		}
		docs = append(docs, chromem.Document{
			ID:        r.ChunkID,
			Content:   r.Text,
			Embedding: r.Embedding,
			Metadata:  recordMetadata(r),
		})
	}

	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return apperrors.NewStoreError("写入向量存储失败", err)
	}
	return nil
}

func (s *chromemVectorStore) Query(ctx context.Context, embedding []float32, topK int, filter *QueryFilter) ([]ScoredRecord, error) {
	if topK <= 0 {
		topK = 5
	}

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	where := buildWhereClause(filter)
	results, err := s.collection.QueryEmbedding(ctx, embedding, topK, where, nil)
	if err != nil {
		return nil, apperrors.NewStoreError("向量检索失败", err)
	}

	scored := make([]ScoredRecord, 0, len(results))
	for _, r := range results {
		scored = append(scored, ScoredRecord{
			Record: recordFromMetadata(r.ID, r.Content, r.Metadata),
			Score:  r.Similarity,
		})
	}
	sortScored(scored)
	return scored, nil
}

func (s *chromemVectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	if s.collection.Count() > 0 {
		where := map[string]string{"document_id": documentID}
		if err := s.collection.Delete(ctx, where, nil); err != nil {
			return apperrors.NewStoreError("删除文档向量失败", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.manifest, documentID)
	return s.saveManifestLocked()
}

func (s *chromemVectorStore) RegisterDocument(ctx context.Context, info DocumentInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest[info.DocumentID] = info
	return s.saveManifestLocked()
}

func (s *chromemVectorStore) GetDocumentInfo(ctx context.Context, documentID string) (*DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.manifest[documentID]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func (s *chromemVectorStore) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]DocumentInfo, 0, len(s.manifest))
	for _, info := range s.manifest {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Filename < infos[j].Filename
	})
	return infos, nil
}

func (s *chromemVectorStore) Ready() bool {
	return s.db != nil && s.collection != nil
}

func (s *chromemVectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveManifestLocked()
}

// loadManifest 启动时恢复文档清单，文件缺失视为空库
func (s *chromemVectorStore) loadManifest() error {
	data, err := os.ReadFile(filepath.Join(s.path, manifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.NewStoreError("读取文档清单失败", err)
	}
	var infos []DocumentInfo
	if err := json.Unmarshal(data, &infos); err != nil {
		return apperrors.NewStoreError("解析文档清单失败", err)
	}
	for _, info := range infos {
		s.manifest[info.DocumentID] = info
	}
	return nil
}

// saveManifestLocked 先写临时文件再重命名，避免写入中断损坏清单
func (s *chromemVectorStore) saveManifestLocked() error {
	infos := make([]DocumentInfo, 0, len(s.manifest))
	for _, info := range s.manifest {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].DocumentID < infos[j].DocumentID
	})

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return apperrors.NewStoreError("序列化文档清单失败", err)
	}

	target := filepath.Join(s.path, manifestFileName)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return apperrors.NewStoreError("写入文档清单失败", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return apperrors.NewStoreError("保存文档清单失败", err)
	}
	return nil
}

// recordMetadata 将索引记录的元数据展开为chromem的扁平map
func recordMetadata(r IndexRecord) map[string]string {
	return map[string]string{
		"document_id": r.DocumentID,
		"filename":    r.Filename,
		"format":      string(r.Format),
		"locator":     r.Locator,
		"chunk_index": strconv.Itoa(r.ChunkIndex),
		"token_count": strconv.Itoa(r.TokenCount),
		"ingested_at": r.IngestedAt.UTC().Format(time.RFC3339),
	}
}

func recordFromMetadata(chunkID, text string, meta map[string]string) IndexRecord {
	chunkIndex, _ := strconv.Atoi(meta["chunk_index"])
	tokenCount, _ := strconv.Atoi(meta["token_count"])
	ingestedAt, _ := time.Parse(time.RFC3339, meta["ingested_at"])
	return IndexRecord{
		ChunkID:    chunkID,
		DocumentID: meta["document_id"],
		Filename:   meta["filename"],
		Format:     Format(meta["format"]),
		Locator:    meta["locator"],
		ChunkIndex: chunkIndex,
		TokenCount: tokenCount,
		Text:       text,
		IngestedAt: ingestedAt,
	}
}

// buildWhereClause 将过滤条件转换为chromem的where子句
func buildWhereClause(filter *QueryFilter) map[string]string {
	if filter.Empty() {
		return nil
	}
	where := make(map[string]string)
	if filter.DocumentID != "" {
		where["document_id"] = filter.DocumentID
	}
	if filter.Filename != "" {
		where["filename"] = filter.Filename
	}
	if filter.Format != "" {
		where["format"] = string(filter.Format)
	}
	return where
}
