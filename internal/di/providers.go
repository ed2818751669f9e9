package di

import (
	"fmt"
	"time"

	"github.com/labrag/backend-go/internal/config"
	"github.com/labrag/backend-go/internal/knowledge"
	"github.com/labrag/backend-go/internal/storage"
	"go.uber.org/dig"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container) error {
	// 配置
	if err := container.Provide(func() (*config.Config, error) {
		cfg := config.GetAppConfig()
		if cfg == nil {
			return nil, fmt.Errorf("config not loaded")
		}
		return cfg, nil
	}); err != nil {
		return err
	}

	// 原始文件存储
	if err := container.Provide(func(cfg *config.Config) (*storage.UploadStore, error) {
		return storage.NewUploadStore(cfg.Storage.UploadPath)
	}); err != nil {
		return err
	}

	// 向量化
	if err := container.Provide(func(cfg *config.Config) knowledge.Embedder {
		return knowledge.NewOpenAIEmbedder(knowledge.OpenAIEmbedderOptions{
			APIKey:     cfg.AI.OpenAIAPIKey,
			BaseURL:    cfg.AI.OpenAIBase,
			Model:      cfg.Knowledge.Embedding.Model,
			BatchSize:  cfg.Knowledge.Embedding.BatchSize,
			MaxRetries: cfg.Knowledge.Embedding.MaxRetries,
			Backoff:    time.Duration(cfg.Knowledge.Embedding.BackoffMs) * time.Millisecond,
		})
	}); err != nil {
		return err
	}

	// 向量存储（按配置选择提供者）
	if err := container.Provide(func(cfg *config.Config, embedder knowledge.Embedder) (knowledge.VectorStore, error) {
		switch cfg.Knowledge.VectorStore.Provider {
		case "milvus":
			return knowledge.NewMilvusVectorStore(knowledge.MilvusOptions{
				Address:    cfg.Knowledge.VectorStore.Milvus.Address,
				Collection: cfg.Knowledge.VectorStore.Milvus.Collection,
				VectorSize: embedder.Dimensions(),
			})
		default:
			return knowledge.NewChromemVectorStore(knowledge.ChromemOptions{
				Path:       cfg.Knowledge.VectorStore.Path,
				Collection: cfg.Knowledge.VectorStore.Collection,
			})
		}
	}); err != nil {
		return err
	}

	// 解析与分块
	if err := container.Provide(func(cfg *config.Config) knowledge.DocumentParser {
		return knowledge.NewFileParserManager(cfg.Knowledge.SheetBlockRows)
	}); err != nil {
		return err
	}

	if err := container.Provide(func(cfg *config.Config) *knowledge.Chunker {
		return knowledge.NewChunker(
			cfg.Knowledge.MinChunkTokens,
			cfg.Knowledge.MaxChunkTokens,
			cfg.Knowledge.OverlapTokens,
		)
	}); err != nil {
		return err
	}

	// 领域服务
	if err := container.Provide(func(parser knowledge.DocumentParser, chunker *knowledge.Chunker, embedder knowledge.Embedder, store knowledge.VectorStore, uploads *storage.UploadStore) *knowledge.Ingestor {
		return knowledge.NewIngestor(parser, chunker, embedder, store, uploads)
	}); err != nil {
		return err
	}

	if err := container.Provide(func(cfg *config.Config, embedder knowledge.Embedder, store knowledge.VectorStore) *knowledge.Retriever {
		return knowledge.NewRetriever(embedder, store, cfg.Retrieval.DefaultTopK, cfg.Retrieval.MaxTopK)
	}); err != nil {
		return err
	}

	if err := container.Provide(knowledge.NewMetadataTool); err != nil {
		return err
	}

	return nil
}
