package pipeline

import (
	"context"
	"time"

	"seiji-fund-go/internal/model"
	"seiji-fund-go/internal/parser"
)

// ObjectStore 对象存储读取接口。
type ObjectStore interface {
	Download(ctx context.Context, objectKey string) ([]byte, error)
}

// TextExtractor 从文件字节中提取纯文本。
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, fileName string) (string, error)
}

// TableProvider 从文件字节中提取结构化表格。可选能力，
// 没有配置时管道会退回到文本重建表格。
type TableProvider interface {
	ExtractTables(ctx context.Context, data []byte, fileName string) ([]parser.Table, error)
}

// Embedder 批量生成向量。
type Embedder interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	ModelVersion() string
}

// ChunkIndexer 向搜索引擎写入/删除文本块。
type ChunkIndexer interface {
	IndexChunks(ctx context.Context, chunks []model.ChunkDocument) error
	DeleteByDocumentID(ctx context.Context, documentID string) error
}

// Locker 分布式互斥锁，防止同一文档被并发处理。
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
