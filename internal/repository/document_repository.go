package repository

import (
	"time"

	"gorm.io/gorm"

	"seiji-fund-go/internal/model"
)

// DocumentRepository 文档表数据访问接口。
type DocumentRepository interface {
	Create(doc *model.Document) error
	FindByID(id string) (*model.Document, error)
	FindByFileName(fileName string) (*model.Document, error)
	// FindByContentHash 查找内容哈希相同的其他文档（排除自身）。
	FindByContentHash(hash, excludeID string) (*model.Document, error)
	// FindProcessable 按上传时间升序取出可重试的文档。
	FindProcessable(statuses []model.DocumentStatus, maxAttempts, limit int) ([]model.Document, error)
	FindAll() ([]model.Document, error)
	// UpdateStatusIf 条件状态迁移：仅当前状态匹配 from 才更新，返回是否生效。
	UpdateStatusIf(id string, from, to model.DocumentStatus) (bool, error)
	// SetContentHash 只在哈希尚未写入时落库，保证哈希一经确定不再变化。
	SetContentHash(id, hash string) error
	MarkDuplicate(id, duplicateOfID string) error
	StartExtraction(id string) error
	FailExtraction(id, errMsg string) error
	CompleteExtraction(id, ocrText string) error
	StartIndexing(id string) error
	FailIndexing(id, errMsg string) error
	CompleteProcessing(id, indexID string) error
	Delete(id string) error
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建文档仓储实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

func (r *documentRepository) FindByID(id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) FindByFileName(fileName string) (*model.Document, error) {
	var doc model.Document
	err := r.db.Where("file_name = ?", fileName).First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) FindByContentHash(hash, excludeID string) (*model.Document, error) {
	var doc model.Document
	err := r.db.Where("content_hash = ? AND id <> ?", hash, excludeID).
		Order("uploaded_at ASC").First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) FindProcessable(statuses []model.DocumentStatus, maxAttempts, limit int) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Where("status IN ? AND attempt_count < ?", statuses, maxAttempts).
		Order("uploaded_at ASC").Limit(limit).Find(&docs).Error
	return docs, err
}

func (r *documentRepository) FindAll() ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Order("uploaded_at DESC").Find(&docs).Error
	return docs, err
}

func (r *documentRepository) UpdateStatusIf(id string, from, to model.DocumentStatus) (bool, error) {
	result := r.db.Model(&model.Document{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *documentRepository) SetContentHash(id, hash string) error {
	return r.db.Model(&model.Document{}).
		Where("id = ? AND content_hash IS NULL", id).
		Update("content_hash", hash).Error
}

func (r *documentRepository) MarkDuplicate(id, duplicateOfID string) error {
	now := time.Now()
	return r.db.Model(&model.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          model.StatusDuplicate,
			"duplicate_of_id": duplicateOfID,
			"processed_at":    &now,
		}).Error
}

func (r *documentRepository) StartExtraction(id string) error {
	// 开始新一轮提取时清空两类错误信息
	return r.db.Model(&model.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":                 model.StatusTextExtractionProcessing,
			"error_message":          nil,
			"indexing_error_message": nil,
		}).Error
}

func (r *documentRepository) FailExtraction(id, errMsg string) error {
	return r.db.Model(&model.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.StatusTextExtractionFailed,
			"error_message": errMsg,
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

func (r *documentRepository) CompleteExtraction(id, ocrText string) error {
	return r.db.Model(&model.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   model.StatusTextExtractionCompleted,
			"ocr_text": ocrText,
		}).Error
}

func (r *documentRepository) StartIndexing(id string) error {
	return r.db.Model(&model.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":                 model.StatusIndexingProcessing,
			"indexing_error_message": nil,
		}).Error
}

func (r *documentRepository) FailIndexing(id, errMsg string) error {
	return r.db.Model(&model.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":                 model.StatusIndexingFailed,
			"indexing_error_message": errMsg,
			"attempt_count":          gorm.Expr("attempt_count + 1"),
		}).Error
}

func (r *documentRepository) CompleteProcessing(id, indexID string) error {
	now := time.Now()
	return r.db.Model(&model.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       model.StatusCompleted,
			"index_id":     indexID,
			"processed_at": &now,
		}).Error
}

func (r *documentRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.Document{}).Error
}
