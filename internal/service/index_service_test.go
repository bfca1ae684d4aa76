package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seiji-fund-go/internal/model"
	"seiji-fund-go/internal/pipeline"
	"seiji-fund-go/internal/repository"
	"seiji-fund-go/pkg/tasks"
)

type stubProcessor struct {
	mu      sync.Mutex
	results map[string]pipeline.Result
	calls   []string
	forced  []bool
}

func (p *stubProcessor) Advance(_ context.Context, documentID string, opts pipeline.Options) pipeline.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, documentID)
	p.forced = append(p.forced, opts.ForceReprocess)
	if r, ok := p.results[documentID]; ok {
		return r
	}
	return pipeline.Result{DocumentID: documentID, Success: true, Message: "ok"}
}

type stubProcessableRepo struct {
	repository.DocumentRepository
	processable []model.Document
	gotStatuses []model.DocumentStatus
	gotMax      int
	gotLimit    int
}

func (s *stubProcessableRepo) FindProcessable(statuses []model.DocumentStatus, maxAttempts, limit int) ([]model.Document, error) {
	s.gotStatuses = statuses
	s.gotMax = maxAttempts
	s.gotLimit = limit
	return s.processable, nil
}

func TestIndexDocumentsSettleAll(t *testing.T) {
	processor := &stubProcessor{results: map[string]pipeline.Result{
		"b": {DocumentID: "b", Success: false, Message: "索引失败", Error: "boom"},
	}}
	svc := NewIndexService(&stubProcessableRepo{}, processor, 3, 5)

	results := svc.IndexDocuments(context.Background(), []string{"a", "b", "c"}, false)
	require.Len(t, results, 3)

	// 单个失败不影响其余文档，结果顺序与输入一致
	assert.Equal(t, "a", results[0].DocumentID)
	assert.True(t, results[0].Success)
	assert.Equal(t, "b", results[1].DocumentID)
	assert.False(t, results[1].Success)
	assert.Equal(t, "c", results[2].DocumentID)
	assert.True(t, results[2].Success)
	assert.Len(t, processor.calls, 3)
}

func TestIndexDocumentsForceFlag(t *testing.T) {
	processor := &stubProcessor{}
	svc := NewIndexService(&stubProcessableRepo{}, processor, 3, 5)

	svc.IndexDocuments(context.Background(), []string{"a"}, true)
	require.Len(t, processor.forced, 1)
	assert.True(t, processor.forced[0])
}

func TestProcessQueue(t *testing.T) {
	repo := &stubProcessableRepo{processable: []model.Document{
		{ID: "a", Status: model.StatusPending},
		{ID: "b", Status: model.StatusTextExtractionFailed},
		{ID: "c", Status: model.StatusPending},
	}}
	processor := &stubProcessor{results: map[string]pipeline.Result{
		"b": {DocumentID: "b", Success: false, Message: "失败"},
		"c": {DocumentID: "c", Success: false, Duplicate: true, Message: "重复"},
	}}
	svc := NewIndexService(repo, processor, 3, 5)

	summary, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	// 重复文档是分类而非失败，单独计数
	assert.Equal(t, 1, summary.Duplicates)

	// 调度条件：可重试状态、尝试次数上限、批大小
	assert.Equal(t, model.RetryableStatuses(), repo.gotStatuses)
	assert.Equal(t, 5, repo.gotMax)
	assert.Equal(t, 3, repo.gotLimit)
}

func TestProcessQueueEmpty(t *testing.T) {
	svc := NewIndexService(&stubProcessableRepo{}, &stubProcessor{}, 3, 5)
	summary, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
}

func TestProcessTask(t *testing.T) {
	processor := &stubProcessor{results: map[string]pipeline.Result{
		"bad": {DocumentID: "bad", Success: false, Error: "boom"},
		"dup": {DocumentID: "dup", Success: false, Message: "文档为重复文档"},
	}}
	svc := NewIndexService(&stubProcessableRepo{}, processor, 3, 5)

	assert.NoError(t, svc.ProcessTask(context.Background(), tasks.DocumentTask{DocumentID: "ok"}))
	assert.Error(t, svc.ProcessTask(context.Background(), tasks.DocumentTask{DocumentID: "bad"}))
	// 业务性拒绝（重复文档）不是错误，不触发消息重投
	assert.NoError(t, svc.ProcessTask(context.Background(), tasks.DocumentTask{DocumentID: "dup"}))
}
