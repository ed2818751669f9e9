package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 摄取与检索链路的Prometheus指标
var (
	DocumentsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labrag_documents_ingested_total",
		Help: "成功入库的文档数",
	})

	IngestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labrag_ingest_failures_total",
		Help: "按阶段统计的摄取失败数",
	}, []string{"stage"})

	ChunksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labrag_chunks_indexed_total",
		Help: "写入向量存储的分块数",
	})

	EmbeddingRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labrag_embedding_retries_total",
		Help: "向量化请求重试次数",
	})

	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "labrag_query_duration_seconds",
		Help:    "检索请求耗时",
		Buckets: prometheus.DefBuckets,
	})
)
