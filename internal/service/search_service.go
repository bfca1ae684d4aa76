package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"seiji-fund-go/internal/model"
	"seiji-fund-go/internal/pipeline"
)

// ErrEmptyQuery 检索词为空。
var ErrEmptyQuery = errors.New("检索词不能为空")

// Searcher 检索服务依赖的索引查询能力。
type Searcher interface {
	Search(ctx context.Context, queryText string, queryVector []float32, size int) ([]model.SearchHit, error)
}

// SearchService 语义检索服务接口。
type SearchService interface {
	Search(ctx context.Context, query string, size int) ([]model.SearchHit, error)
}

type searchService struct {
	embedder pipeline.Embedder
	searcher Searcher
}

// NewSearchService 创建检索服务。
func NewSearchService(embedder pipeline.Embedder, searcher Searcher) SearchService {
	return &searchService{embedder: embedder, searcher: searcher}
}

func (s *searchService) Search(ctx context.Context, query string, size int) ([]model.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	vectors, err := s.embedder.CreateEmbeddings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("检索词向量化失败: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("检索词向量化结果异常")
	}
	return s.searcher.Search(ctx, query, vectors[0], size)
}
