package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seiji-fund-go/internal/model"
	"seiji-fund-go/internal/parser"
)

const sampleText = "政治団体の名称　山田太郎後援会\n令和5年分 収支報告書\n" +
	"年月日 収入の項目 金額\n" +
	"R5.1.15 個人からの寄附 1,000,000円\n"

// ---- 内存版仓储与依赖 ----

type fakeDocRepo struct {
	mu   sync.Mutex
	docs map[string]*model.Document
}

func newFakeDocRepo(docs ...*model.Document) *fakeDocRepo {
	r := &fakeDocRepo{docs: make(map[string]*model.Document)}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *fakeDocRepo) get(id string) *model.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[id]
}

func (r *fakeDocRepo) Create(doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
	return nil
}

func (r *fakeDocRepo) FindByID(id string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	copied := *doc
	return &copied, nil
}

func (r *fakeDocRepo) FindByFileName(fileName string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.FileName == fileName {
			copied := *d
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeDocRepo) FindByContentHash(hash, excludeID string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.ID != excludeID && d.ContentHash != nil && *d.ContentHash == hash {
			copied := *d
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeDocRepo) FindProcessable(statuses []model.DocumentStatus, maxAttempts, limit int) ([]model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Document
	for _, d := range r.docs {
		for _, s := range statuses {
			if d.Status == s && d.AttemptCount < maxAttempts && len(out) < limit {
				out = append(out, *d)
			}
		}
	}
	return out, nil
}

func (r *fakeDocRepo) FindAll() ([]model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Document
	for _, d := range r.docs {
		out = append(out, *d)
	}
	return out, nil
}

func (r *fakeDocRepo) UpdateStatusIf(id string, from, to model.DocumentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.Status != from {
		return false, nil
	}
	doc.Status = to
	return true, nil
}

func (r *fakeDocRepo) SetContentHash(id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[id]; ok && doc.ContentHash == nil {
		doc.ContentHash = &hash
	}
	return nil
}

func (r *fakeDocRepo) MarkDuplicate(id, duplicateOfID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	doc := r.docs[id]
	doc.Status = model.StatusDuplicate
	doc.DuplicateOfID = &duplicateOfID
	doc.ProcessedAt = &now
	return nil
}

func (r *fakeDocRepo) StartExtraction(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := r.docs[id]
	doc.Status = model.StatusTextExtractionProcessing
	doc.ErrorMessage = nil
	doc.IndexingErrorMessage = nil
	return nil
}

func (r *fakeDocRepo) FailExtraction(id, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := r.docs[id]
	doc.Status = model.StatusTextExtractionFailed
	doc.ErrorMessage = &errMsg
	doc.AttemptCount++
	return nil
}

func (r *fakeDocRepo) CompleteExtraction(id, ocrText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := r.docs[id]
	doc.Status = model.StatusTextExtractionCompleted
	doc.OcrText = &ocrText
	return nil
}

func (r *fakeDocRepo) StartIndexing(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := r.docs[id]
	doc.Status = model.StatusIndexingProcessing
	doc.IndexingErrorMessage = nil
	return nil
}

func (r *fakeDocRepo) FailIndexing(id, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := r.docs[id]
	doc.Status = model.StatusIndexingFailed
	doc.IndexingErrorMessage = &errMsg
	doc.AttemptCount++
	return nil
}

func (r *fakeDocRepo) CompleteProcessing(id, indexID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	doc := r.docs[id]
	doc.Status = model.StatusCompleted
	doc.IndexID = &indexID
	doc.ProcessedAt = &now
	return nil
}

func (r *fakeDocRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}

type fakeChunkRepo struct {
	mu     sync.Mutex
	chunks map[string][]model.EmbeddingChunk
}

func newFakeChunkRepo() *fakeChunkRepo {
	return &fakeChunkRepo{chunks: make(map[string][]model.EmbeddingChunk)}
}

func (r *fakeChunkRepo) ReplaceForDocument(documentID string, chunks []model.EmbeddingChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks[documentID] = chunks
	return nil
}

func (r *fakeChunkRepo) FindByDocumentID(documentID string) ([]model.EmbeddingChunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chunks[documentID], nil
}

func (r *fakeChunkRepo) DeleteByDocumentID(documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chunks, documentID)
	return nil
}

func (r *fakeChunkRepo) CountByDocumentID(documentID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.chunks[documentID])), nil
}

type fakeFinancialRepo struct {
	mu          sync.Mutex
	orgs        map[string]*model.FundOrganization
	income      map[string][]model.IncomeRecord
	expenditure map[string][]model.ExpenditureRecord
}

func newFakeFinancialRepo() *fakeFinancialRepo {
	return &fakeFinancialRepo{
		orgs:        make(map[string]*model.FundOrganization),
		income:      make(map[string][]model.IncomeRecord),
		expenditure: make(map[string][]model.ExpenditureRecord),
	}
}

func (r *fakeFinancialRepo) UpsertOrganization(org *model.FundOrganization) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := fmt.Sprintf("%s/%d", org.Name, org.ReportYear)
	if existing, ok := r.orgs[key]; ok {
		existing.TotalIncome = org.TotalIncome
		existing.TotalExpenditure = org.TotalExpenditure
		return existing.ID, nil
	}
	org.ID = key
	r.orgs[key] = org
	return org.ID, nil
}

func (r *fakeFinancialRepo) ReplaceRecords(sourceDocumentID, organizationID string,
	income []model.IncomeRecord, expenditure []model.ExpenditureRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.income[sourceDocumentID] = income
	r.expenditure[sourceDocumentID] = expenditure
	return nil
}

func (r *fakeFinancialRepo) DeleteBySourceDocument(sourceDocumentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.income, sourceDocumentID)
	delete(r.expenditure, sourceDocumentID)
	return nil
}

func (r *fakeFinancialRepo) FindOrganizations() ([]model.FundOrganization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.FundOrganization
	for _, o := range r.orgs {
		out = append(out, *o)
	}
	return out, nil
}

type fakeStore struct {
	objects map[string][]byte
	err     error
}

func (s *fakeStore) Download(_ context.Context, objectKey string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.objects[objectKey], nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (e *fakeExtractor) ExtractText(_ context.Context, _ []byte, _ string) (string, error) {
	return e.text, e.err
}

type fakeTableProvider struct {
	tables []parser.Table
	err    error
}

func (p *fakeTableProvider) ExtractTables(_ context.Context, _ []byte, _ string) ([]parser.Table, error) {
	return p.tables, p.err
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (e *fakeEmbedder) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 1.0}
	}
	return vectors, nil
}

func (e *fakeEmbedder) ModelVersion() string { return "test-embedding-v1" }

type fakeIndexer struct {
	mu      sync.Mutex
	indexed map[string][]model.ChunkDocument
	deletes []string
	err     error
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{indexed: make(map[string][]model.ChunkDocument)}
}

func (x *fakeIndexer) IndexChunks(_ context.Context, chunks []model.ChunkDocument) error {
	if x.err != nil {
		return x.err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, c := range chunks {
		x.indexed[c.DocumentID] = append(x.indexed[c.DocumentID], c)
	}
	return nil
}

func (x *fakeIndexer) DeleteByDocumentID(_ context.Context, documentID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.deletes = append(x.deletes, documentID)
	delete(x.indexed, documentID)
	return nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	busy bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy || l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// flakyDocRepo 让指定的状态写入失败，其余行为与内存仓储一致。
type flakyDocRepo struct {
	*fakeDocRepo
	failOp string
}

func (r *flakyDocRepo) StartExtraction(id string) error {
	if r.failOp == "startExtraction" {
		return errors.New("数据库连接中断")
	}
	return r.fakeDocRepo.StartExtraction(id)
}

func (r *flakyDocRepo) CompleteExtraction(id, ocrText string) error {
	if r.failOp == "completeExtraction" {
		return errors.New("数据库连接中断")
	}
	return r.fakeDocRepo.CompleteExtraction(id, ocrText)
}

func (r *flakyDocRepo) StartIndexing(id string) error {
	if r.failOp == "startIndexing" {
		return errors.New("数据库连接中断")
	}
	return r.fakeDocRepo.StartIndexing(id)
}

func (r *flakyDocRepo) CompleteProcessing(id, indexID string) error {
	if r.failOp == "completeProcessing" {
		return errors.New("数据库连接中断")
	}
	return r.fakeDocRepo.CompleteProcessing(id, indexID)
}

// ---- 测试脚手架 ----

type testEnv struct {
	docRepo   *fakeDocRepo
	chunkRepo *fakeChunkRepo
	finRepo   *fakeFinancialRepo
	store     *fakeStore
	extractor *fakeExtractor
	embedder  *fakeEmbedder
	indexer   *fakeIndexer
	locker    *fakeLocker
	processor *Processor
}

func newTestEnv(docs ...*model.Document) *testEnv {
	env := &testEnv{
		docRepo:   newFakeDocRepo(docs...),
		chunkRepo: newFakeChunkRepo(),
		finRepo:   newFakeFinancialRepo(),
		store:     &fakeStore{objects: make(map[string][]byte)},
		extractor: &fakeExtractor{text: sampleText},
		embedder:  &fakeEmbedder{},
		indexer:   newFakeIndexer(),
		locker:    newFakeLocker(),
	}
	env.processor = NewProcessor(
		env.docRepo, env.chunkRepo, env.finRepo,
		env.store, env.extractor, nil, env.embedder, env.indexer, env.locker,
		Config{ChunkSize: 100, ChunkOverlap: 10},
	)
	return env
}

func pendingDoc(id string) *model.Document {
	return &model.Document{
		ID:        id,
		FileName:  id + ".pdf",
		ObjectKey: "documents/" + id,
		Status:    model.StatusPending,
	}
}

// ---- 测试 ----

func TestAdvanceHappyPath(t *testing.T) {
	doc := pendingDoc("doc-1")
	env := newTestEnv(doc)
	env.store.objects[doc.ObjectKey] = []byte("%PDF-1.4 fake content")

	result := env.processor.Advance(context.Background(), doc.ID, Options{})
	require.True(t, result.Success, "message=%s error=%s", result.Message, result.Error)
	assert.NotEmpty(t, result.IndexID)

	stored := env.docRepo.get(doc.ID)
	assert.Equal(t, model.StatusCompleted, stored.Status)
	require.NotNil(t, stored.ContentHash)
	assert.Len(t, *stored.ContentHash, 64)
	assert.NotNil(t, stored.IndexID)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Nil(t, stored.ErrorMessage)

	chunks, _ := env.chunkRepo.FindByDocumentID(doc.ID)
	assert.NotEmpty(t, chunks)
	assert.Equal(t, len(chunks), len(env.indexer.indexed[doc.ID]))
	for i, c := range env.indexer.indexed[doc.ID] {
		assert.Equal(t, fmt.Sprintf("%s_%d", doc.ID, i), c.ChunkID)
	}

	// 结构化结果已落库
	orgs, _ := env.finRepo.FindOrganizations()
	require.Len(t, orgs, 1)
	assert.Equal(t, "山田太郎後援会", orgs[0].Name)
	assert.Equal(t, 2023, orgs[0].ReportYear)
	assert.Equal(t, int64(1000000), orgs[0].TotalIncome)
	require.Len(t, env.finRepo.income[doc.ID], 1)
}

func TestAdvanceContentDuplicate(t *testing.T) {
	content := []byte("identical bytes")
	original := pendingDoc("doc-original")
	dup := pendingDoc("doc-dup")
	env := newTestEnv(original, dup)
	env.store.objects[original.ObjectKey] = content
	env.store.objects[dup.ObjectKey] = content

	first := env.processor.Advance(context.Background(), original.ID, Options{})
	require.True(t, first.Success)

	second := env.processor.Advance(context.Background(), dup.ID, Options{})
	assert.False(t, second.Success)
	assert.True(t, second.Duplicate, "重复是分类而不是错误")
	assert.Empty(t, second.Error)

	// 已标记为重复的文档再次触发时同样返回重复分类
	third := env.processor.Advance(context.Background(), dup.ID, Options{})
	assert.False(t, third.Success)
	assert.True(t, third.Duplicate)

	stored := env.docRepo.get(dup.ID)
	assert.Equal(t, model.StatusDuplicate, stored.Status)
	require.NotNil(t, stored.DuplicateOfID)
	assert.Equal(t, original.ID, *stored.DuplicateOfID)
	assert.NotNil(t, stored.ProcessedAt)
}

func TestAdvanceEmptyFile(t *testing.T) {
	doc := pendingDoc("doc-empty")
	env := newTestEnv(doc)
	env.store.objects[doc.ObjectKey] = nil

	result := env.processor.Advance(context.Background(), doc.ID, Options{})
	assert.False(t, result.Success)

	stored := env.docRepo.get(doc.ID)
	assert.Equal(t, model.StatusTextExtractionFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, 1, stored.AttemptCount)
}

func TestAdvanceExtractionFailure(t *testing.T) {
	doc := pendingDoc("doc-fail")
	env := newTestEnv(doc)
	env.store.objects[doc.ObjectKey] = []byte("content")
	env.extractor.err = errors.New("PDF 無文本層")

	result := env.processor.Advance(context.Background(), doc.ID, Options{})
	assert.False(t, result.Success)

	stored := env.docRepo.get(doc.ID)
	assert.Equal(t, model.StatusTextExtractionFailed, stored.Status)
	assert.Equal(t, 1, stored.AttemptCount)
}

func TestAdvancePlaceholderText(t *testing.T) {
	doc := pendingDoc("doc-placeholder")
	env := newTestEnv(doc)
	env.store.objects[doc.ObjectKey] = []byte("content")
	env.extractor.text = "テキストを抽出できませんでした"

	result := env.processor.Advance(context.Background(), doc.ID, Options{})
	assert.False(t, result.Success)
	assert.Equal(t, model.StatusTextExtractionFailed, env.docRepo.get(doc.ID).Status)
}

func TestAdvanceEmbeddingFailure(t *testing.T) {
	doc := pendingDoc("doc-embed-fail")
	env := newTestEnv(doc)
	env.store.objects[doc.ObjectKey] = []byte("content")
	env.embedder.err = errors.New("接口超时")

	result := env.processor.Advance(context.Background(), doc.ID, Options{})
	assert.False(t, result.Success)

	stored := env.docRepo.get(doc.ID)
	assert.Equal(t, model.StatusIndexingFailed, stored.Status)
	require.NotNil(t, stored.IndexingErrorMessage)
	assert.Equal(t, 1, stored.AttemptCount)
	// 失败时不产生半成品块
	chunks, _ := env.chunkRepo.FindByDocumentID(doc.ID)
	assert.Empty(t, chunks)
}

func TestAdvanceCompletedIsIdempotent(t *testing.T) {
	doc := pendingDoc("doc-done")
	env := newTestEnv(doc)
	env.store.objects[doc.ObjectKey] = []byte("content")

	first := env.processor.Advance(context.Background(), doc.ID, Options{})
	require.True(t, first.Success)
	extractions := env.embedder.calls

	second := env.processor.Advance(context.Background(), doc.ID, Options{})
	assert.True(t, second.Success)
	assert.Empty(t, second.IndexID)
	assert.Equal(t, extractions, env.embedder.calls, "已完成文档不应重新向量化")
}

func TestAdvanceForceReprocess(t *testing.T) {
	doc := pendingDoc("doc-force")
	env := newTestEnv(doc)
	env.store.objects[doc.ObjectKey] = []byte("content")

	first := env.processor.Advance(context.Background(), doc.ID, Options{})
	require.True(t, first.Success)

	second := env.processor.Advance(context.Background(), doc.ID, Options{ForceReprocess: true})
	require.True(t, second.Success, "message=%s error=%s", second.Message, second.Error)
	assert.NotEmpty(t, second.IndexID)

	// 旧索引先清空再重建，不残留两代分块
	assert.GreaterOrEqual(t, len(env.indexer.deletes), 2)
	chunks, _ := env.chunkRepo.FindByDocumentID(doc.ID)
	assert.NotEmpty(t, chunks)
	assert.Equal(t, len(chunks), len(env.indexer.indexed[doc.ID]))

	stored := env.docRepo.get(doc.ID)
	assert.Equal(t, model.StatusCompleted, stored.Status)
}

func TestAdvanceStatusWriteFailureStaysRetryable(t *testing.T) {
	// 状态写入自身失败时，文档也必须落到可重试的失败状态，
	// 绝不停留在 *_processing/中间状态而被调度器永久跳过
	tests := []struct {
		failOp   string
		expected model.DocumentStatus
	}{
		{"startExtraction", model.StatusTextExtractionFailed},
		{"completeExtraction", model.StatusTextExtractionFailed},
		{"startIndexing", model.StatusIndexingFailed},
		{"completeProcessing", model.StatusIndexingFailed},
	}
	for _, tt := range tests {
		t.Run(tt.failOp, func(t *testing.T) {
			doc := pendingDoc("doc-flaky-" + tt.failOp)
			env := newTestEnv(doc)
			env.store.objects[doc.ObjectKey] = []byte("content")
			flaky := &flakyDocRepo{fakeDocRepo: env.docRepo, failOp: tt.failOp}
			env.processor = NewProcessor(
				flaky, env.chunkRepo, env.finRepo,
				env.store, env.extractor, nil, env.embedder, env.indexer, env.locker,
				Config{ChunkSize: 100, ChunkOverlap: 10},
			)

			result := env.processor.Advance(context.Background(), doc.ID, Options{})
			assert.False(t, result.Success)

			stored := env.docRepo.get(doc.ID)
			assert.Equal(t, tt.expected, stored.Status)
			assert.True(t, stored.Status.IsRetryable(), "状态 %s 必须可重试", stored.Status)
			assert.Equal(t, 1, stored.AttemptCount)
		})
	}
}

func TestAdvanceLockBusy(t *testing.T) {
	doc := pendingDoc("doc-locked")
	env := newTestEnv(doc)
	env.store.objects[doc.ObjectKey] = []byte("content")
	env.locker.busy = true

	result := env.processor.Advance(context.Background(), doc.ID, Options{})
	assert.False(t, result.Success)
	assert.Empty(t, result.Error)

	// 状态保持不变，下一轮调度可重新拾起
	stored := env.docRepo.get(doc.ID)
	assert.Equal(t, model.StatusPending, stored.Status)
	assert.Equal(t, 0, stored.AttemptCount)
}

func TestAdvanceUnknownDocument(t *testing.T) {
	env := newTestEnv()
	result := env.processor.Advance(context.Background(), "missing", Options{})
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestAdvanceOrganizationUnresolved(t *testing.T) {
	doc := pendingDoc("doc-noorg")
	env := newTestEnv(doc)
	env.store.objects[doc.ObjectKey] = []byte("content")
	env.extractor.text = "団体名も年度もないテキスト"

	result := env.processor.Advance(context.Background(), doc.ID, Options{})
	assert.False(t, result.Success)

	stored := env.docRepo.get(doc.ID)
	assert.Equal(t, model.StatusIndexingFailed, stored.Status)
	// 文本提取本身成功，结果保留
	require.NotNil(t, stored.OcrText)
}

func TestAdvanceWithTableProvider(t *testing.T) {
	doc := pendingDoc("doc-tables")
	env := newTestEnv(doc)
	env.store.objects[doc.ObjectKey] = []byte("content")
	env.extractor.text = "政治団体の名称　テスト会\n令和4年分\n"
	provider := &fakeTableProvider{tables: []parser.Table{
		{
			Header: []string{"支出の目的", "金額", "年月日"},
			Rows:   [][]string{{"印刷費", "30,000円", "R4.6.1"}},
		},
	}}
	env.processor = NewProcessor(
		env.docRepo, env.chunkRepo, env.finRepo,
		env.store, env.extractor, provider, env.embedder, env.indexer, env.locker,
		Config{ChunkSize: 100, ChunkOverlap: 10},
	)

	result := env.processor.Advance(context.Background(), doc.ID, Options{})
	require.True(t, result.Success, "message=%s error=%s", result.Message, result.Error)
	require.Len(t, env.finRepo.expenditure[doc.ID], 1)
	assert.Equal(t, int64(30000), env.finRepo.expenditure[doc.ID][0].Amount)
}
