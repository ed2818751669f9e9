package knowledge

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/labrag/backend-go/internal/errors"
	"github.com/labrag/backend-go/internal/logger"
	"github.com/labrag/backend-go/internal/metrics"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Embedder 定义文本向量化接口。
// 摄取与检索必须使用同一个Embedder实例，保证查询向量与索引向量同源。
type Embedder interface {
	// EmbedBatch 批量向量化，结果与输入一一对应且保序
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery 向量化单条查询文本
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Model() string
	Ready() bool
}

// NoopEmbedder 默认占位实现
type NoopEmbedder struct{}

func (n *NoopEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embedding provider not configured")
}

func (n *NoopEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding provider not configured")
}

func (n *NoopEmbedder) Dimensions() int { return 0 }

func (n *NoopEmbedder) Model() string { return "" }

func (n *NoopEmbedder) Ready() bool { return false }

var embeddingDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbedderOptions OpenAI向量化配置
type OpenAIEmbedderOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	BatchSize  int
	MaxRetries int
	Backoff    time.Duration
}

// OpenAIEmbedder 使用OpenAI Embedding API，按批次请求并对瞬时错误做指数退避重试
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	batchSize  int
	maxRetries int
	backoff    time.Duration
}

// NewOpenAIEmbedder 创建OpenAI嵌入向量生成器，未配置APIKey时返回NoopEmbedder
func NewOpenAIEmbedder(opts OpenAIEmbedderOptions) Embedder {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return &NoopEmbedder{}
	}
	if opts.Model == "" {
		opts.Model = "text-embedding-3-small"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}

	var client *openai.Client
	if opts.BaseURL != "" {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = opts.BaseURL
		client = openai.NewClientWithConfig(cfg)
	} else {
		client = openai.NewClient(apiKey)
	}

	dims, ok := embeddingDimensions[opts.Model]
	if !ok {
		dims = 1536
	}

	return &OpenAIEmbedder{
		client:     client,
		model:      opts.Model,
		dimensions: dims,
		batchSize:  opts.BatchSize,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
	}
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is empty")
	}
	vectors, err := e.embedWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) embedWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			delay := e.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			metrics.EmbeddingRetries.Inc()
		}

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.model),
			Input: batch,
		})
		if err == nil {
			if len(resp.Data) != len(batch) {
				return nil, apperrors.NewEmbeddingServiceError("向量化结果数量与请求不一致", nil)
			}
			vectors := make([][]float32, len(batch))
			for _, d := range resp.Data {
				embedding := make([]float32, len(d.Embedding))
				copy(embedding, d.Embedding)
				vectors[d.Index] = embedding
			}
			return vectors, nil
		}

		lastErr = err
		if !isRetryableEmbeddingError(err) {
			break
		}
		logger.Warn("Embedding请求失败，准备重试",
			zap.Int("attempt", attempt+1),
			zap.Int("batch_size", len(batch)),
			zap.Error(err))
	}
	return nil, apperrors.NewEmbeddingServiceError("向量化服务调用失败", lastErr)
}

// isRetryableEmbeddingError 限流、服务端错误与网络错误可重试，客户端错误不重试
func isRetryableEmbeddingError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	if apperrors.IsRetryableError(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

func (e *OpenAIEmbedder) Model() string { return e.model }

func (e *OpenAIEmbedder) Ready() bool { return e.client != nil }
