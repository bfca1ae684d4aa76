package repository

import (
	"gorm.io/gorm"

	"seiji-fund-go/internal/model"
)

// ChunkRepository 文本块数据访问接口。
type ChunkRepository interface {
	// ReplaceForDocument 原子替换某文档的全部文本块。
	ReplaceForDocument(documentID string, chunks []model.EmbeddingChunk) error
	FindByDocumentID(documentID string) ([]model.EmbeddingChunk, error)
	DeleteByDocumentID(documentID string) error
	CountByDocumentID(documentID string) (int64, error)
}

type chunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository 创建文本块仓储实例。
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

func (r *chunkRepository) ReplaceForDocument(documentID string, chunks []model.EmbeddingChunk) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).
			Delete(&model.EmbeddingChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(chunks, 100).Error
	})
}

func (r *chunkRepository) FindByDocumentID(documentID string) ([]model.EmbeddingChunk, error) {
	var chunks []model.EmbeddingChunk
	err := r.db.Where("document_id = ?", documentID).
		Order("chunk_index ASC").Find(&chunks).Error
	return chunks, err
}

func (r *chunkRepository) DeleteByDocumentID(documentID string) error {
	return r.db.Where("document_id = ?", documentID).Delete(&model.EmbeddingChunk{}).Error
}

func (r *chunkRepository) CountByDocumentID(documentID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.EmbeddingChunk{}).
		Where("document_id = ?", documentID).Count(&count).Error
	return count, err
}
