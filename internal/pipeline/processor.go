package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"seiji-fund-go/internal/model"
	"seiji-fund-go/internal/parser"
	"seiji-fund-go/internal/repository"
	"seiji-fund-go/pkg/log"
)

// Options 控制单次处理行为。
type Options struct {
	// ForceReprocess 为 true 时忽略已完成/重复状态，从头重新处理。
	ForceReprocess bool
}

// Result 单个文档的处理结果。
type Result struct {
	DocumentID string `json:"documentId"`
	Success    bool   `json:"success"`
	// Duplicate 表示文档被判定为重复。重复是一种分类而不是错误，
	// 汇总统计时与失败分开计数。
	Duplicate bool   `json:"duplicate,omitempty"`
	Message   string `json:"message"`
	IndexID   string `json:"indexId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Config 处理管道参数。
type Config struct {
	ChunkSize     int
	ChunkOverlap  int
	ChunkStrategy string // window 或 sentence
	LockTTL       time.Duration
}

// Processor 文档处理管道：哈希查重 → 文本提取 → 结构化解析 → 切块 → 向量化 → 索引。
type Processor struct {
	docRepo       repository.DocumentRepository
	chunkRepo     repository.ChunkRepository
	financialRepo repository.FinancialRepository
	store         ObjectStore
	extractor     TextExtractor
	tables        TableProvider // 可为 nil
	embedder      Embedder
	indexer       ChunkIndexer
	locker        Locker
	cfg           Config
}

// NewProcessor 创建处理管道。tables 传 nil 时从纯文本重建表格。
func NewProcessor(
	docRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
	financialRepo repository.FinancialRepository,
	store ObjectStore,
	extractor TextExtractor,
	tables TableProvider,
	embedder Embedder,
	indexer ChunkIndexer,
	locker Locker,
	cfg Config,
) *Processor {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 0
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &Processor{
		docRepo:       docRepo,
		chunkRepo:     chunkRepo,
		financialRepo: financialRepo,
		store:         store,
		extractor:     extractor,
		tables:        tables,
		embedder:      embedder,
		indexer:       indexer,
		locker:        locker,
		cfg:           cfg,
	}
}

// Advance 推进单个文档的处理流程。任何失败都会先把对应的失败状态
// 落库再返回，保证文档不会停留在 processing 状态。
func (p *Processor) Advance(ctx context.Context, documentID string, opts Options) Result {
	doc, err := p.docRepo.FindByID(documentID)
	if err != nil {
		return Result{DocumentID: documentID, Success: false,
			Message: "文档不存在", Error: err.Error()}
	}

	if doc.Status == model.StatusCompleted && !opts.ForceReprocess {
		log.Infof("[Processor] 文档 %s 已处理完成，跳过", documentID)
		return Result{DocumentID: documentID, Success: true, Message: "文档已处理完成"}
	}
	if doc.Status == model.StatusDuplicate && !opts.ForceReprocess {
		return Result{DocumentID: documentID, Success: false, Duplicate: true, Message: "文档为重复文档，未处理"}
	}

	// 分布式锁防止同一文档被并发处理
	acquired, err := p.locker.Acquire(ctx, documentID, p.cfg.LockTTL)
	if err != nil {
		return Result{DocumentID: documentID, Success: false,
			Message: "获取处理锁失败", Error: err.Error()}
	}
	if !acquired {
		return Result{DocumentID: documentID, Success: false, Message: "文档正在被其他任务处理"}
	}
	defer func() {
		if err := p.locker.Release(context.Background(), documentID); err != nil {
			log.Errorf("[Processor] 释放锁失败: %s: %v", documentID, err)
		}
	}()

	// 条件状态迁移作为第二道防线：锁过期后的并发者会在这里失败
	claimed, err := p.docRepo.UpdateStatusIf(documentID, doc.Status, model.StatusHashChecking)
	if err != nil {
		return Result{DocumentID: documentID, Success: false,
			Message: "更新状态失败", Error: err.Error()}
	}
	if !claimed {
		return Result{DocumentID: documentID, Success: false, Message: "文档状态已变化，放弃本次处理"}
	}

	return p.process(ctx, doc, opts)
}

func (p *Processor) process(ctx context.Context, doc *model.Document, opts Options) Result {
	id := doc.ID
	log.Infof("[Processor] 步骤1: 下载文件 %s (%s)", doc.FileName, doc.ObjectKey)
	data, err := p.store.Download(ctx, doc.ObjectKey)
	if err != nil {
		return p.failExtraction(id, fmt.Errorf("下载文件失败: %w", err))
	}
	if len(data) == 0 {
		return p.failExtraction(id, fmt.Errorf("文件内容为空"))
	}

	log.Infof("[Processor] 步骤2: 计算内容哈希并查重")
	hash := p.contentHash(doc, data)
	if dup, err := p.docRepo.FindByContentHash(hash, id); err != nil {
		return p.failExtraction(id, fmt.Errorf("查重失败: %w", err))
	} else if dup != nil && dup.Status != model.StatusDuplicate {
		if err := p.docRepo.MarkDuplicate(id, dup.ID); err != nil {
			return p.failExtraction(id, fmt.Errorf("标记重复失败: %w", err))
		}
		log.Infof("[Processor] 文档 %s 与 %s 内容重复", id, dup.ID)
		return Result{DocumentID: id, Success: false, Duplicate: true,
			Message: fmt.Sprintf("文档内容与 %s 重复", dup.ID)}
	}

	log.Infof("[Processor] 步骤3: 提取文本")
	// 状态写入失败同样走失败路径落库，文档绝不停留在中间状态
	if err := p.docRepo.StartExtraction(id); err != nil {
		return p.failExtraction(id, fmt.Errorf("更新状态失败: %w", err))
	}
	text, err := p.extractor.ExtractText(ctx, data, doc.FileName)
	if err != nil {
		return p.failExtraction(id, fmt.Errorf("文本提取失败: %w", err))
	}
	if isEmptyExtraction(text) {
		return p.failExtraction(id, fmt.Errorf("提取结果为空，文件可能是扫描件"))
	}
	if err := p.docRepo.CompleteExtraction(id, text); err != nil {
		return p.failExtraction(id, fmt.Errorf("保存提取结果失败: %w", err))
	}

	log.Infof("[Processor] 步骤4: 结构化解析并索引")
	if err := p.docRepo.StartIndexing(id); err != nil {
		return p.failIndexing(id, fmt.Errorf("更新状态失败: %w", err))
	}
	return p.index(ctx, doc, data, text)
}

// index 执行结构化解析、切块、向量化与写索引。
func (p *Processor) index(ctx context.Context, doc *model.Document, data []byte, text string) Result {
	id := doc.ID

	var tables []parser.Table
	if p.tables != nil {
		extracted, err := p.tables.ExtractTables(ctx, data, doc.FileName)
		if err != nil {
			// 表格服务失败不致命，退回文本重建
			log.Warnf("[Processor] 表格提取失败，退回文本重建: %v", err)
		} else {
			tables = extracted
		}
	}

	report, err := parser.Extract(text, doc.FileName, tables)
	if err != nil {
		return p.failIndexing(id, fmt.Errorf("结构化解析失败: %w", err))
	}
	for _, te := range report.TableErrors {
		log.Warnf("[Processor] 文档 %s 表格解析告警: %v", id, te)
	}

	orgID, err := p.financialRepo.UpsertOrganization(&model.FundOrganization{
		Name:             report.OrganizationName,
		ReportYear:       report.ReportYear,
		TotalIncome:      report.TotalIncome(),
		TotalExpenditure: report.TotalExpenditure(),
		SourceDocumentID: id,
	})
	if err != nil {
		return p.failIndexing(id, fmt.Errorf("保存政治团体失败: %w", err))
	}
	income, expenditure := toRecords(report)
	if err := p.financialRepo.ReplaceRecords(id, orgID, income, expenditure); err != nil {
		return p.failIndexing(id, fmt.Errorf("保存收支明细失败: %w", err))
	}

	texts := p.split(text)
	if len(texts) == 0 {
		return p.failIndexing(id, fmt.Errorf("切块结果为空"))
	}
	log.Infof("[Processor] 文档 %s 切分为 %d 块，开始向量化", id, len(texts))

	vectors, err := p.embedder.CreateEmbeddings(ctx, texts)
	if err != nil {
		return p.failIndexing(id, fmt.Errorf("向量化失败: %w", err))
	}
	if len(vectors) != len(texts) {
		return p.failIndexing(id, fmt.Errorf("向量数量不匹配: 期望 %d 实际 %d", len(texts), len(vectors)))
	}

	chunks := make([]model.EmbeddingChunk, len(texts))
	docs := make([]model.ChunkDocument, len(texts))
	modelVersion := p.embedder.ModelVersion()
	for i, t := range texts {
		chunks[i] = model.EmbeddingChunk{
			DocumentID:   id,
			ChunkIndex:   i,
			ChunkText:    t,
			Vector:       vectors[i],
			ModelVersion: modelVersion,
		}
		docs[i] = model.ChunkDocument{
			ChunkID:      fmt.Sprintf("%s_%d", id, i),
			DocumentID:   id,
			ChunkIndex:   i,
			TextContent:  t,
			Vector:       vectors[i],
			ModelVersion: modelVersion,
			FileName:     doc.FileName,
			PartyName:    doc.PartyName,
			Region:       doc.Region,
		}
	}

	if err := p.chunkRepo.ReplaceForDocument(id, chunks); err != nil {
		return p.failIndexing(id, fmt.Errorf("保存文本块失败: %w", err))
	}
	// 先清空旧索引再写入，保证重建后不残留旧块
	if err := p.indexer.DeleteByDocumentID(ctx, id); err != nil {
		return p.failIndexing(id, fmt.Errorf("清理旧索引失败: %w", err))
	}
	if err := p.indexer.IndexChunks(ctx, docs); err != nil {
		return p.failIndexing(id, fmt.Errorf("写入索引失败: %w", err))
	}

	indexID := fmt.Sprintf("idx_%s_%d", id, time.Now().UnixMilli())
	if err := p.docRepo.CompleteProcessing(id, indexID); err != nil {
		return p.failIndexing(id, fmt.Errorf("更新完成状态失败: %w", err))
	}
	log.Infof("[Processor] 文档 %s 处理完成: %d 块, %d 条明细, indexID=%s",
		id, len(chunks), report.RecordCount(), indexID)
	return Result{DocumentID: id, Success: true,
		Message: fmt.Sprintf("处理完成: %d 块, %d 条明细", len(chunks), report.RecordCount()),
		IndexID: indexID}
}

// contentHash 返回文档的内容哈希：已落库的哈希不再变化，
// 只有首次处理才写入计算值。
func (p *Processor) contentHash(doc *model.Document, data []byte) string {
	if doc.ContentHash != nil && *doc.ContentHash != "" {
		return *doc.ContentHash
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if err := p.docRepo.SetContentHash(doc.ID, hash); err != nil {
		log.Errorf("[Processor] 写入内容哈希失败: %s: %v", doc.ID, err)
	}
	return hash
}

// extractionPlaceholders 是部分解析后端在提取不到内容时返回的占位文案。
// 占位文本等同于空结果，不能流入索引阶段。
var extractionPlaceholders = []string{
	"テキストを抽出できませんでした",
	"No text could be extracted",
}

func isEmptyExtraction(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	for _, p := range extractionPlaceholders {
		if trimmed == p {
			return true
		}
	}
	return false
}

func (p *Processor) split(text string) []string {
	if p.cfg.ChunkStrategy == "sentence" {
		return SplitSentences(text, p.cfg.ChunkSize)
	}
	return SplitText(text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
}

func (p *Processor) failExtraction(id string, cause error) Result {
	log.Errorf("[Processor] 文档 %s 提取失败: %v", id, cause)
	if err := p.docRepo.FailExtraction(id, cause.Error()); err != nil {
		log.Errorf("[Processor] 写入失败状态出错: %s: %v", id, err)
	}
	return Result{DocumentID: id, Success: false, Message: "文本提取失败", Error: cause.Error()}
}

func (p *Processor) failIndexing(id string, cause error) Result {
	log.Errorf("[Processor] 文档 %s 索引失败: %v", id, cause)
	if err := p.docRepo.FailIndexing(id, cause.Error()); err != nil {
		log.Errorf("[Processor] 写入失败状态出错: %s: %v", id, err)
	}
	return Result{DocumentID: id, Success: false, Message: "索引失败", Error: cause.Error()}
}

func toRecords(report *parser.Report) ([]model.IncomeRecord, []model.ExpenditureRecord) {
	income := make([]model.IncomeRecord, len(report.Income))
	for i, row := range report.Income {
		income[i] = model.IncomeRecord{
			TransactionDate:     row.Date,
			Description:         row.Description,
			Amount:              row.Amount,
			CounterpartyName:    row.CounterpartyName,
			CounterpartyAddress: row.CounterpartyAddress,
			RawRowText:          row.RawText,
		}
	}
	expenditure := make([]model.ExpenditureRecord, len(report.Expenditure))
	for i, row := range report.Expenditure {
		expenditure[i] = model.ExpenditureRecord{
			TransactionDate:     row.Date,
			Description:         row.Description,
			Amount:              row.Amount,
			CounterpartyName:    row.CounterpartyName,
			CounterpartyAddress: row.CounterpartyAddress,
			RawRowText:          row.RawText,
		}
	}
	return income, expenditure
}
