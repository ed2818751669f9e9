package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server     ServerConfig
	Knowledge  KnowledgeConfig
	Storage    StorageConfig
	AI         AIConfig
	Retrieval  RetrievalConfig
	FileUpload FileUploadConfig
	Prometheus PrometheusConfig
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Port string
	Env  string
}

// KnowledgeConfig 文档摄取与分块配置
type KnowledgeConfig struct {
	MinChunkTokens int
	MaxChunkTokens int
	OverlapTokens  int
	SheetBlockRows int
	VectorStore    VectorStoreConfig
	Embedding      EmbeddingConfig
}

// VectorStoreConfig 向量存储配置
type VectorStoreConfig struct {
	Provider   string // chromem | milvus
	Path       string // chromem持久化目录
	Collection string
	Milvus     MilvusConfig
}

// MilvusConfig Milvus连接配置
type MilvusConfig struct {
	Address    string
	Collection string
}

// EmbeddingConfig 向量化配置
type EmbeddingConfig struct {
	Model      string
	BatchSize  int
	MaxRetries int
	BackoffMs  int
}

// StorageConfig 原始文件存储配置
type StorageConfig struct {
	UploadPath string
}

// AIConfig 外部AI服务配置
type AIConfig struct {
	OpenAIAPIKey string
	OpenAIBase   string
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	DefaultTopK int
	MaxTopK     int
}

// FileUploadConfig 上传限制
type FileUploadConfig struct {
	MaxSizeMB int
}

// PrometheusConfig 指标配置
type PrometheusConfig struct {
	Enabled bool
}

// AppConfig 全局配置实例
var AppConfig *Config

// LoadConfig 加载配置：默认值 < 配置文件 < 环境变量
func LoadConfig() error {
	setDefaults()

	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./conf")
	viper.AddConfigPath(".")

	// 配置文件缺失不视为错误，默认值加环境变量足够启动
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Knowledge: KnowledgeConfig{
			MinChunkTokens: viper.GetInt("knowledge.min_chunk_tokens"),
			MaxChunkTokens: viper.GetInt("knowledge.max_chunk_tokens"),
			OverlapTokens:  viper.GetInt("knowledge.overlap_tokens"),
			SheetBlockRows: viper.GetInt("knowledge.sheet_block_rows"),
			VectorStore: VectorStoreConfig{
				Provider:   viper.GetString("knowledge.vector_store.provider"),
				Path:       viper.GetString("knowledge.vector_store.path"),
				Collection: viper.GetString("knowledge.vector_store.collection"),
				Milvus: MilvusConfig{
					Address:    viper.GetString("knowledge.vector_store.milvus.address"),
					Collection: viper.GetString("knowledge.vector_store.milvus.collection"),
				},
			},
			Embedding: EmbeddingConfig{
				Model:      viper.GetString("knowledge.embedding.model"),
				BatchSize:  viper.GetInt("knowledge.embedding.batch_size"),
				MaxRetries: viper.GetInt("knowledge.embedding.max_retries"),
				BackoffMs:  viper.GetInt("knowledge.embedding.backoff_ms"),
			},
		},
		Storage: StorageConfig{
			UploadPath: viper.GetString("storage.upload_path"),
		},
		AI: AIConfig{
			OpenAIAPIKey: viper.GetString("ai.openai_api_key"),
			OpenAIBase:   viper.GetString("ai.openai_base_url"),
		},
		Retrieval: RetrievalConfig{
			DefaultTopK: viper.GetInt("retrieval.default_top_k"),
			MaxTopK:     viper.GetInt("retrieval.max_top_k"),
		},
		FileUpload: FileUploadConfig{
			MaxSizeMB: viper.GetInt("file_upload.max_size_mb"),
		},
		Prometheus: PrometheusConfig{
			Enabled: viper.GetBool("prometheus.enabled"),
		},
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return err
	}

	AppConfig = cfg
	return nil
}

// GetAppConfig 获取全局配置
func GetAppConfig() *Config {
	return AppConfig
}

func setDefaults() {
	viper.SetDefault("server.port", "8001")
	viper.SetDefault("server.env", "development")

	viper.SetDefault("knowledge.min_chunk_tokens", 300)
	viper.SetDefault("knowledge.max_chunk_tokens", 600)
	viper.SetDefault("knowledge.overlap_tokens", 75)
	viper.SetDefault("knowledge.sheet_block_rows", 100)

	viper.SetDefault("knowledge.vector_store.provider", "chromem")
	viper.SetDefault("knowledge.vector_store.path", "./data/chroma")
	viper.SetDefault("knowledge.vector_store.collection", "lab_documents")
	viper.SetDefault("knowledge.vector_store.milvus.address", "localhost:19530")
	viper.SetDefault("knowledge.vector_store.milvus.collection", "lab_chunks")

	viper.SetDefault("knowledge.embedding.model", "text-embedding-3-small")
	viper.SetDefault("knowledge.embedding.batch_size", 16)
	viper.SetDefault("knowledge.embedding.max_retries", 3)
	viper.SetDefault("knowledge.embedding.backoff_ms", 500)

	viper.SetDefault("storage.upload_path", "./data/raw_uploads")

	viper.SetDefault("retrieval.default_top_k", 5)
	viper.SetDefault("retrieval.max_top_k", 50)

	viper.SetDefault("file_upload.max_size_mb", 50)

	viper.SetDefault("prometheus.enabled", true)
}

// applyEnvOverrides 环境变量优先于配置文件
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Server.Env = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.AI.OpenAIBase = v
	}
	if v := os.Getenv("OPENAI_EMBEDDING_MODEL"); v != "" {
		cfg.Knowledge.Embedding.Model = v
	}
	if v := os.Getenv("VECTOR_STORE_PROVIDER"); v != "" {
		cfg.Knowledge.VectorStore.Provider = v
	}
	if v := os.Getenv("CHROMA_PATH"); v != "" {
		cfg.Knowledge.VectorStore.Path = v
	}
	if v := os.Getenv("MILVUS_ADDRESS"); v != "" {
		cfg.Knowledge.VectorStore.Milvus.Address = v
	}
	if v := os.Getenv("UPLOAD_PATH"); v != "" {
		cfg.Storage.UploadPath = v
	}
	if v := os.Getenv("CHUNK_OVERLAP_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Knowledge.OverlapTokens = n
		}
	}
}

// validate 分块参数必须满足 0 < min <= max 且 overlap 在 [50,100] 内
func validate(cfg *Config) error {
	k := cfg.Knowledge
	if k.MinChunkTokens <= 0 || k.MaxChunkTokens < k.MinChunkTokens {
		return fmt.Errorf("无效的分块配置: min=%d max=%d", k.MinChunkTokens, k.MaxChunkTokens)
	}
	if k.OverlapTokens < 50 || k.OverlapTokens > 100 {
		return fmt.Errorf("无效的重叠配置: overlap=%d (允许范围 50-100)", k.OverlapTokens)
	}
	if k.OverlapTokens >= k.MinChunkTokens {
		return fmt.Errorf("重叠必须小于最小分块: overlap=%d min=%d", k.OverlapTokens, k.MinChunkTokens)
	}
	switch cfg.Knowledge.VectorStore.Provider {
	case "chromem", "milvus":
	default:
		return fmt.Errorf("未知的向量存储提供者: %s", cfg.Knowledge.VectorStore.Provider)
	}
	return nil
}
