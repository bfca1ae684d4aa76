package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"seiji-fund-go/internal/model"
	"seiji-fund-go/internal/pipeline"
	"seiji-fund-go/internal/repository"
	"seiji-fund-go/pkg/log"
	"seiji-fund-go/pkg/tasks"
)

// DocumentProcessor 调度服务依赖的文档处理能力。
type DocumentProcessor interface {
	Advance(ctx context.Context, documentID string, opts pipeline.Options) pipeline.Result
}

// QueueSummary 定时批处理的执行摘要。重复文档是分类而非失败，单独计数。
type QueueSummary struct {
	Processed  int               `json:"processed"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Duplicates int               `json:"duplicates"`
	Results    []pipeline.Result `json:"results"`
}

// IndexService 文档处理调度服务接口。
type IndexService interface {
	// IndexDocuments 并发处理一批文档，逐一收集结果，任何单个失败
	// 都不会中断其余文档。
	IndexDocuments(ctx context.Context, documentIDs []string, force bool) []pipeline.Result
	// ProcessQueue 扫描可重试的文档并批量处理。
	ProcessQueue(ctx context.Context) (*QueueSummary, error)
	// ProcessTask 消费队列投递的单个任务。
	ProcessTask(ctx context.Context, task tasks.DocumentTask) error
}

type indexService struct {
	docRepo     repository.DocumentRepository
	processor   DocumentProcessor
	batchSize   int
	maxAttempts int
}

// NewIndexService 创建调度服务。
func NewIndexService(docRepo repository.DocumentRepository, processor DocumentProcessor,
	batchSize, maxAttempts int) IndexService {
	if batchSize <= 0 {
		batchSize = 3
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &indexService{
		docRepo:     docRepo,
		processor:   processor,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

func (s *indexService) IndexDocuments(ctx context.Context, documentIDs []string, force bool) []pipeline.Result {
	results := make([]pipeline.Result, len(documentIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range documentIDs {
		i, id := i, id
		g.Go(func() error {
			results[i] = s.processor.Advance(gctx, id, pipeline.Options{ForceReprocess: force})
			// 结果写入 results，永远返回 nil，保证其余文档继续处理
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *indexService) ProcessQueue(ctx context.Context) (*QueueSummary, error) {
	docs, err := s.docRepo.FindProcessable(model.RetryableStatuses(), s.maxAttempts, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("查询待处理文档失败: %w", err)
	}
	if len(docs) == 0 {
		return &QueueSummary{}, nil
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	log.Infof("[Queue] 本轮处理 %d 个文档: %v", len(ids), ids)

	results := s.IndexDocuments(ctx, ids, false)
	summary := &QueueSummary{Processed: len(results), Results: results}
	for _, r := range results {
		switch {
		case r.Success:
			summary.Succeeded++
		case r.Duplicate:
			summary.Duplicates++
		default:
			summary.Failed++
		}
	}
	log.Infof("[Queue] 本轮完成: 成功 %d 失败 %d 重复 %d",
		summary.Succeeded, summary.Failed, summary.Duplicates)
	return summary, nil
}

func (s *indexService) ProcessTask(ctx context.Context, task tasks.DocumentTask) error {
	result := s.processor.Advance(ctx, task.DocumentID, pipeline.Options{})
	if result.Error != "" {
		return errors.New(result.Error)
	}
	return nil
}
