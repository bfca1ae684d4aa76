package service

import (
	"context"
	"fmt"
	"time"

	"seiji-fund-go/internal/model"
	"seiji-fund-go/internal/pipeline"
	"seiji-fund-go/internal/repository"
	"seiji-fund-go/pkg/log"
)

// downloadURLExpiry 详情页下载链接的有效期。
const downloadURLExpiry = 15 * time.Minute

// ObjectAdmin 文档管理服务依赖的对象存储管理能力。
type ObjectAdmin interface {
	Remove(ctx context.Context, objectKey string) error
	PresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

// DocumentDetail 是文档详情接口的返回结构。
type DocumentDetail struct {
	Document   *model.Document `json:"document"`
	ChunkCount int64           `json:"chunkCount"`
	// DownloadURL 带时效的原始文件下载链接，签发失败时为空。
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// DocumentService 文档管理服务接口。
type DocumentService interface {
	List() ([]model.Document, error)
	// Get 返回文档详情：记录本体、分块数量与带时效的下载链接。
	Get(ctx context.Context, id string) (*DocumentDetail, error)
	// Delete 级联删除：明细、分块、搜索索引、对象存储、文档记录。
	Delete(ctx context.Context, id string) error
}

type documentService struct {
	docRepo       repository.DocumentRepository
	chunkRepo     repository.ChunkRepository
	financialRepo repository.FinancialRepository
	indexer       pipeline.ChunkIndexer
	store         ObjectAdmin
}

// NewDocumentService 创建文档管理服务。
func NewDocumentService(
	docRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
	financialRepo repository.FinancialRepository,
	indexer pipeline.ChunkIndexer,
	store ObjectAdmin,
) DocumentService {
	return &documentService{
		docRepo:       docRepo,
		chunkRepo:     chunkRepo,
		financialRepo: financialRepo,
		indexer:       indexer,
		store:         store,
	}
}

func (s *documentService) List() ([]model.Document, error) {
	return s.docRepo.FindAll()
}

func (s *documentService) Get(ctx context.Context, id string) (*DocumentDetail, error) {
	doc, err := s.docRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	count, err := s.chunkRepo.CountByDocumentID(id)
	if err != nil {
		return nil, fmt.Errorf("统计文本块失败: %w", err)
	}
	detail := &DocumentDetail{Document: doc, ChunkCount: count}
	// 签发下载链接失败不影响详情展示
	url, err := s.store.PresignedURL(ctx, doc.ObjectKey, downloadURLExpiry)
	if err != nil {
		log.Warnf("[Document] 签发下载链接失败: %s: %v", id, err)
	} else {
		detail.DownloadURL = url
	}
	return detail, nil
}

func (s *documentService) Delete(ctx context.Context, id string) error {
	doc, err := s.docRepo.FindByID(id)
	if err != nil {
		return fmt.Errorf("文档不存在: %w", err)
	}

	if err := s.financialRepo.DeleteBySourceDocument(id); err != nil {
		return fmt.Errorf("删除收支明细失败: %w", err)
	}
	if err := s.chunkRepo.DeleteByDocumentID(id); err != nil {
		return fmt.Errorf("删除文本块失败: %w", err)
	}
	if err := s.indexer.DeleteByDocumentID(ctx, id); err != nil {
		return fmt.Errorf("删除搜索索引失败: %w", err)
	}
	// 对象存储删除失败只记日志，孤儿对象可离线清理
	if err := s.store.Remove(ctx, doc.ObjectKey); err != nil {
		log.Errorf("[Document] 删除对象 %s 失败: %v", doc.ObjectKey, err)
	}
	if err := s.docRepo.Delete(id); err != nil {
		return fmt.Errorf("删除文档记录失败: %w", err)
	}

	log.Infof("[Document] 文档 %s 已级联删除", id)
	return nil
}
