package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/labrag/backend-go/internal/errors"
	"github.com/labrag/backend-go/internal/logger"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address    string
	Username   string
	Password   string
	Collection string
	VectorSize int
	Database   string
	UseTLS     bool
	Timeout    time.Duration
}

// milvusVectorStore 远程Milvus向量存储，可替代本地chromem提供者
type milvusVectorStore struct {
	milvusClient client.Client
	collection   string
	vectorSize   int
}

// NewMilvusVectorStore 创建Milvus向量存储
func NewMilvusVectorStore(opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Collection == "" {
		opts.Collection = "lab_chunks"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 1536
	}
	if opts.Database == "" {
		opts.Database = "default"
	}

	milvusClient, err := client.NewClient(
		context.Background(),
		client.Config{
			Address:       opts.Address,
			DBName:        opts.Database,
			Username:      opts.Username,
			Password:      opts.Password,
			EnableTLSAuth: opts.UseTLS,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	s := &milvusVectorStore{
		milvusClient: milvusClient,
		collection:   opts.Collection,
		vectorSize:   opts.VectorSize,
	}
	if err := s.ensureCollection(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *milvusVectorStore) ensureCollection(ctx context.Context) error {
	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !hasCollection {
		schema := &entity.Schema{
			CollectionName: s.collection,
			Description:    "Lab document chunks",
			Fields: []*entity.Field{
				{
					Name:       "chunk_id",
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{"max_length": "160"},
				},
				{
					Name:       "document_id",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "80"},
				},
				{
					Name:       "filename",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "512"},
				},
				{
					Name:       "format",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "8"},
				},
				{
					Name:       "locator",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "512"},
				},
				{
					Name:     "chunk_index",
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:     "token_count",
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:       "ingested_at",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "40"},
				},
				{
					Name:       "content",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "65535"},
				},
				{
					Name:       "vector",
					DataType:   entity.FieldTypeFloatVector,
					TypeParams: map[string]string{"dim": fmt.Sprintf("%d", s.vectorSize)},
				},
			},
		}

		if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		var index entity.Index
		index, indexErr := entity.NewIndexHNSW(entity.COSINE, 8, 64)
		if indexErr != nil {
			// HNSW不可用时退回IVF_FLAT
			index, indexErr = entity.NewIndexIvfFlat(entity.COSINE, 128)
			if indexErr != nil {
				return fmt.Errorf("failed to create index: %w", indexErr)
			}
		}
		if err := s.milvusClient.CreateIndex(ctx, s.collection, "vector", index, false); err != nil {
			logger.Warn("创建向量索引失败", zap.String("collection", s.collection), zap.Error(err))
		}
	}

	if err := s.milvusClient.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

func (s *milvusVectorStore) Upsert(ctx context.Context, records []IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	n := len(records)
	chunkIDs := make([]string, n)
	documentIDs := make([]string, n)
	filenames := make([]string, n)
	formats := make([]string, n)
	locators := make([]string, n)
	chunkIndexes := make([]int64, n)
	tokenCounts := make([]int64, n)
	ingestedAts := make([]string, n)
	contents := make([]string, n)
	vectors := make([][]float32, n)

	for i, r := range records {
		if len(r.Embedding) != s.vectorSize {
			return apperrors.NewStoreError(fmt.Sprintf("向量维度不匹配: %s", r.ChunkID), nil)
		}
		chunkIDs[i] = r.ChunkID
		documentIDs[i] = r.DocumentID
		filenames[i] = r.Filename
		formats[i] = string(r.Format)
		locators[i] = r.Locator
		chunkIndexes[i] = int64(r.ChunkIndex)
		tokenCounts[i] = int64(r.TokenCount)
		ingestedAts[i] = r.IngestedAt.UTC().Format(time.RFC3339)
		contents[i] = r.Text
		vectors[i] = r.Embedding
	}

	_, err := s.milvusClient.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnVarChar("document_id", documentIDs),
		entity.NewColumnVarChar("filename", filenames),
		entity.NewColumnVarChar("format", formats),
		entity.NewColumnVarChar("locator", locators),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
		entity.NewColumnInt64("token_count", tokenCounts),
		entity.NewColumnVarChar("ingested_at", ingestedAts),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnFloatVector("vector", s.vectorSize, vectors),
	)
	if err != nil {
		return apperrors.NewStoreError("milvus写入失败", err)
	}

	if err := s.milvusClient.Flush(ctx, s.collection, false); err != nil {
		logger.Warn("milvus刷新失败", zap.Error(err))
	}
	return nil
}

func (s *milvusVectorStore) Query(ctx context.Context, embedding []float32, topK int, filter *QueryFilter) ([]ScoredRecord, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 5
	}

	sp, _ := entity.NewIndexHNSWSearchParam(64)
	searchResults, err := s.milvusClient.Search(
		ctx,
		s.collection,
		[]string{},
		buildMilvusExpr(filter),
		[]string{"document_id", "filename", "format", "locator", "chunk_index", "token_count", "ingested_at", "content"},
		[]entity.Vector{entity.FloatVector(embedding)},
		"vector",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, apperrors.NewStoreError("milvus检索失败", err)
	}
	if len(searchResults) == 0 {
		return nil, nil
	}
	result := searchResults[0]
	if result.Err != nil {
		return nil, apperrors.NewStoreError("milvus检索失败", result.Err)
	}
	if result.ResultCount == 0 {
		return nil, nil
	}

	var chunkIDs []string
	if idCol, ok := result.IDs.(*entity.ColumnVarChar); ok {
		chunkIDs = idCol.Data()
	}

	fields := map[string][]string{}
	var chunkIndexes, tokenCounts []int64
	for _, field := range result.Fields {
		switch col := field.(type) {
		case *entity.ColumnVarChar:
			fields[field.Name()] = col.Data()
		case *entity.ColumnInt64:
			if field.Name() == "chunk_index" {
				chunkIndexes = col.Data()
			} else if field.Name() == "token_count" {
				tokenCounts = col.Data()
			}
		}
	}

	strAt := func(name string, i int) string {
		if vals, ok := fields[name]; ok && i < len(vals) {
			return vals[i]
		}
		return ""
	}

	scored := make([]ScoredRecord, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		record := IndexRecord{
			DocumentID: strAt("document_id", i),
			Filename:   strAt("filename", i),
			Format:     Format(strAt("format", i)),
			Locator:    strAt("locator", i),
			Text:       strAt("content", i),
		}
		if i < len(chunkIDs) {
			record.ChunkID = chunkIDs[i]
		}
		if i < len(chunkIndexes) {
			record.ChunkIndex = int(chunkIndexes[i])
		}
		if i < len(tokenCounts) {
			record.TokenCount = int(tokenCounts[i])
		}
		if t, err := time.Parse(time.RFC3339, strAt("ingested_at", i)); err == nil {
			record.IngestedAt = t
		}

		score := float32(0)
		if i < len(result.Scores) {
			score = result.Scores[i]
		}
		scored = append(scored, ScoredRecord{Record: record, Score: score})
	}

	sortScored(scored)
	return scored, nil
}

func (s *milvusVectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	expr := fmt.Sprintf("document_id == %q", documentID)
	if err := s.milvusClient.Delete(ctx, s.collection, "", expr); err != nil {
		return apperrors.NewStoreError("milvus删除失败", err)
	}
	if err := s.milvusClient.Flush(ctx, s.collection, false); err != nil {
		logger.Warn("milvus刷新失败", zap.Error(err))
	}
	return nil
}

// RegisterDocument Milvus提供者的文档元信息直接由分块记录聚合而来
func (s *milvusVectorStore) RegisterDocument(ctx context.Context, info DocumentInfo) error {
	return nil
}

func (s *milvusVectorStore) GetDocumentInfo(ctx context.Context, documentID string) (*DocumentInfo, error) {
	expr := fmt.Sprintf("document_id == %q", documentID)
	infos, err := s.queryDocumentInfos(ctx, expr)
	if err != nil {
		return nil, err
	}
	for i := range infos {
		if infos[i].DocumentID == documentID {
			return &infos[i], nil
		}
	}
	return nil, nil
}

func (s *milvusVectorStore) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	return s.queryDocumentInfos(ctx, "chunk_index >= 0")
}

// queryDocumentInfos 拉取匹配的分块元数据并按文档聚合
func (s *milvusVectorStore) queryDocumentInfos(ctx context.Context, expr string) ([]DocumentInfo, error) {
	rs, err := s.milvusClient.Query(ctx, s.collection, nil, expr,
		[]string{"document_id", "filename", "format", "token_count", "ingested_at"})
	if err != nil {
		return nil, apperrors.NewStoreError("milvus查询失败", err)
	}

	var documentIDs, filenames, formats, ingestedAts []string
	var tokenCounts []int64
	for _, col := range rs {
		switch c := col.(type) {
		case *entity.ColumnVarChar:
			switch col.Name() {
			case "document_id":
				documentIDs = c.Data()
			case "filename":
				filenames = c.Data()
			case "format":
				formats = c.Data()
			case "ingested_at":
				ingestedAts = c.Data()
			}
		case *entity.ColumnInt64:
			if col.Name() == "token_count" {
				tokenCounts = c.Data()
			}
		}
	}

	byDoc := make(map[string]*DocumentInfo)
	var order []string
	for i, docID := range documentIDs {
		info, ok := byDoc[docID]
		if !ok {
			info = &DocumentInfo{DocumentID: docID}
			if i < len(filenames) {
				info.Filename = filenames[i]
			}
			if i < len(formats) {
				info.Format = Format(formats[i])
			}
			if i < len(ingestedAts) {
				if t, err := time.Parse(time.RFC3339, ingestedAts[i]); err == nil {
					info.IngestedAt = t
				}
			}
			byDoc[docID] = info
			order = append(order, docID)
		}
		info.ChunkCount++
		if i < len(tokenCounts) {
			info.TokenCount += int(tokenCounts[i])
		}
	}

	infos := make([]DocumentInfo, 0, len(order))
	for _, docID := range order {
		infos = append(infos, *byDoc[docID])
	}
	return infos, nil
}

func (s *milvusVectorStore) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}

func (s *milvusVectorStore) Close() error {
	if s.milvusClient == nil {
		return nil
	}
	return s.milvusClient.Close()
}

// buildMilvusExpr 将过滤条件转换为Milvus布尔表达式。
// %q对引号和反斜杠做转义，过滤值原样进入表达式字面量。
func buildMilvusExpr(filter *QueryFilter) string {
	if filter.Empty() {
		return ""
	}
	var parts []string
	if filter.DocumentID != "" {
		parts = append(parts, fmt.Sprintf("document_id == %q", filter.DocumentID))
	}
	if filter.Filename != "" {
		parts = append(parts, fmt.Sprintf("filename == %q", filter.Filename))
	}
	if filter.Format != "" {
		parts = append(parts, fmt.Sprintf("format == %q", string(filter.Format)))
	}
	return strings.Join(parts, " && ")
}
