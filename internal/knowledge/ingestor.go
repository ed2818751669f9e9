package knowledge

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	apperrors "github.com/labrag/backend-go/internal/errors"
	"github.com/labrag/backend-go/internal/logger"
	"github.com/labrag/backend-go/internal/metrics"
	"go.uber.org/zap"
)

// DocumentParser 解析器抽象
type DocumentParser interface {
	Parse(data []byte, filename string) ([]StructuralUnit, error)
	Supports(filename string) bool
}

// RawStore 原始文件存储抽象
type RawStore interface {
	Save(documentID, filename string, data []byte) error
	Remove(documentID string) error
}

// IngestOptions 摄取选项
type IngestOptions struct {
	// Replace 为真时先删除同ID旧文档再重新摄取；否则重复内容直接跳过
	Replace bool
}

// IngestSummary 摄取结果摘要
type IngestSummary struct {
	DocumentID      string    `json:"document_id"`
	Filename        string    `json:"filename"`
	Format          Format    `json:"format"`
	ChunkCount      int       `json:"chunk_count"`
	TokenCount      int       `json:"token_count"`
	IngestedAt      time.Time `json:"ingested_at"`
	Replaced        bool      `json:"replaced,omitempty"`
	AlreadyIngested bool      `json:"already_ingested,omitempty"`
}

// Ingestor 文档摄取编排器：解析、分块、充实、向量化、入库。
// 所有分块的向量全部就绪后才写入存储，失败的文档不会留下任何记录。
type Ingestor struct {
	parser   DocumentParser
	chunker  *Chunker
	embedder Embedder
	store    VectorStore
	uploads  RawStore

	locks sync.Map // documentID -> *sync.Mutex
}

// NewIngestor 创建摄取编排器，uploads可为nil（不保存原始文件）
func NewIngestor(parser DocumentParser, chunker *Chunker, embedder Embedder, store VectorStore, uploads RawStore) *Ingestor {
	return &Ingestor{
		parser:   parser,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		uploads:  uploads,
	}
}

// Ingest 摄取一份文档。内容哈希相同的重复上传是幂等空操作，
// 除非opts.Replace要求先删后建。
func (ing *Ingestor) Ingest(ctx context.Context, filename string, data []byte, opts IngestOptions) (*IngestSummary, error) {
	format, ok := FormatFromFilename(filename)
	if !ok {
		metrics.IngestFailures.WithLabelValues(string(StageReceived)).Inc()
		return nil, apperrors.NewUnsupportedFormatError(filepath.Ext(filename))
	}
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("文件内容为空")
	}

	doc := NewDocument(filename, data, format)

	// 同一文档的并发摄取串行化
	mu := ing.lockFor(doc.ID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := ing.store.GetDocumentInfo(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !opts.Replace {
			logger.Info("文档已入库，跳过重复摄取",
				zap.String("document_id", doc.ID),
				zap.String("filename", filename))
			return &IngestSummary{
				DocumentID:      existing.DocumentID,
				Filename:        existing.Filename,
				Format:          existing.Format,
				ChunkCount:      existing.ChunkCount,
				TokenCount:      existing.TokenCount,
				IngestedAt:      existing.IngestedAt,
				AlreadyIngested: true,
			}, nil
		}
		if err := ing.store.DeleteDocument(ctx, doc.ID); err != nil {
			return nil, err
		}
	}

	sm := NewIngestStateMachine(doc.ID)
	fail := func(stage IngestStage, cause error) (*IngestSummary, error) {
		_ = sm.Transition(StageFailed)
		metrics.IngestFailures.WithLabelValues(string(stage)).Inc()
		report := &FailureReport{DocumentID: doc.ID, Filename: filename, Stage: stage, Cause: cause}
		logger.Error("文档摄取失败",
			zap.String("document_id", doc.ID),
			zap.String("filename", filename),
			zap.String("stage", string(stage)),
			zap.Error(cause))
		return nil, report
	}

	if ing.uploads != nil {
		if err := ing.uploads.Save(doc.ID, filename, data); err != nil {
			return fail(StageReceived, err)
		}
	}

	units, err := ing.parser.Parse(data, filename)
	if err != nil {
		return fail(StageParsed, err)
	}
	_ = sm.Transition(StageParsed)

	chunks := ing.chunker.Split(doc, units)
	if len(chunks) == 0 {
		return fail(StageChunked, errNoContent)
	}
	_ = sm.Transition(StageChunked)

	now := time.Now().UTC()
	records := make([]IndexRecord, len(chunks))
	texts := make([]string, len(chunks))
	tokenTotal := 0
	for i, chunk := range chunks {
		records[i] = Enrich(chunk, doc, now)
		texts[i] = chunk.Text
		tokenTotal += chunk.TokenCount
	}
	_ = sm.Transition(StageEnriched)

	vectors, err := ing.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fail(StageEmbedded, err)
	}
	if len(vectors) != len(records) {
		return fail(StageEmbedded, fmt.Errorf("向量数量与分块数量不一致: %d != %d", len(vectors), len(records)))
	}
	for i := range records {
		records[i].Embedding = vectors[i]
	}
	_ = sm.Transition(StageEmbedded)

	if err := ing.store.Upsert(ctx, records); err != nil {
		return fail(StageStored, err)
	}
	_ = sm.Transition(StageStored)

	info := DocumentInfo{
		DocumentID: doc.ID,
		Filename:   filename,
		Format:     format,
		SizeBytes:  doc.SizeBytes,
		ChunkCount: len(chunks),
		TokenCount: tokenTotal,
		IngestedAt: now,
	}
	if err := ing.store.RegisterDocument(ctx, info); err != nil {
		return fail(StageStored, err)
	}
	_ = sm.Transition(StageComplete)

	metrics.DocumentsIngested.Inc()
	metrics.ChunksIndexed.Add(float64(len(chunks)))
	logger.Info("文档摄取完成",
		zap.String("document_id", doc.ID),
		zap.String("filename", filename),
		zap.String("format", string(format)),
		zap.Int("chunks", len(chunks)),
		zap.Int("tokens", tokenTotal))

	return &IngestSummary{
		DocumentID: doc.ID,
		Filename:   filename,
		Format:     format,
		ChunkCount: len(chunks),
		TokenCount: tokenTotal,
		IngestedAt: now,
		Replaced:   existing != nil,
	}, nil
}

// Delete 删除文档的全部分块与原始文件
func (ing *Ingestor) Delete(ctx context.Context, documentID string) error {
	info, err := ing.store.GetDocumentInfo(ctx, documentID)
	if err != nil {
		return err
	}
	if info == nil {
		return apperrors.NewNotFoundError("document")
	}
	if err := ing.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if ing.uploads != nil {
		if err := ing.uploads.Remove(documentID); err != nil {
			logger.Warn("删除原始文件失败",
				zap.String("document_id", documentID),
				zap.Error(err))
		}
	}
	logger.Info("文档已删除", zap.String("document_id", documentID))
	return nil
}

func (ing *Ingestor) lockFor(documentID string) *sync.Mutex {
	mu, _ := ing.locks.LoadOrStore(documentID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
