// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// DocumentStatus 是文档处理状态的封闭枚举。
// 状态只能由处理管道推进，外部 API 不允许写入任意字符串。
type DocumentStatus string

const (
	StatusPending                  DocumentStatus = "pending"
	StatusHashChecking             DocumentStatus = "hash_checking"
	StatusDuplicate                DocumentStatus = "duplicate"
	StatusTextExtractionProcessing DocumentStatus = "text_extraction_processing"
	StatusTextExtractionCompleted  DocumentStatus = "text_extraction_completed"
	StatusTextExtractionFailed     DocumentStatus = "text_extraction_failed"
	StatusIndexingProcessing       DocumentStatus = "indexing_processing"
	StatusIndexingFailed           DocumentStatus = "indexing_failed"
	StatusCompleted                DocumentStatus = "completed"
)

// Valid 判断状态值是否属于枚举。
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusHashChecking, StatusDuplicate,
		StatusTextExtractionProcessing, StatusTextExtractionCompleted, StatusTextExtractionFailed,
		StatusIndexingProcessing, StatusIndexingFailed, StatusCompleted:
		return true
	}
	return false
}

// IsRetryable 判断该状态是否允许被调度器再次处理。
func (s DocumentStatus) IsRetryable() bool {
	switch s {
	case StatusPending, StatusTextExtractionFailed, StatusIndexingFailed:
		return true
	}
	return false
}

// IsTerminal 判断该状态是否为终态（不带 reprocess 标志时不会再推进）。
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusDuplicate
}

// RetryableStatuses 返回调度器的候选状态集合。
func RetryableStatuses() []DocumentStatus {
	return []DocumentStatus{StatusPending, StatusTextExtractionFailed, StatusIndexingFailed}
}

// Document 对应 documents 表，记录一份上传的收支报告书 PDF 及其处理状态。
// 文档不做物理删除（管理端的删除接口除外），状态字段描述其最终去向。
type Document struct {
	ID       string `gorm:"type:char(36);primaryKey" json:"id"`
	FileName string `gorm:"type:varchar(255);not null" json:"fileName"`
	// ObjectKey 是 MinIO 中的对象键，例如 documents/<uuid>-<fileName>。
	ObjectKey string `gorm:"type:varchar(512);not null" json:"objectKey"`
	FileSize  int64  `gorm:"not null" json:"fileSize"`
	// ContentHash 是整个文件字节流的 SHA-256 十六进制摘要，计算后不可变。
	ContentHash *string        `gorm:"type:char(64);index" json:"contentHash"`
	Status      DocumentStatus `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	OcrText     *string        `gorm:"type:longtext" json:"-"`
	// ErrorMessage 记录提取阶段的错误；IndexingErrorMessage 记录索引阶段的错误。
	// 两者独立，便于前端同时展示"文本已提取、索引失败"之类的状态。
	ErrorMessage         *string `gorm:"type:text" json:"errorMessage"`
	IndexingErrorMessage *string `gorm:"type:text" json:"indexingErrorMessage"`
	IndexID              *string `gorm:"type:varchar(128)" json:"indexId"`
	// DuplicateOfID 指向内容相同的既有文档；status=duplicate 时必填。
	DuplicateOfID *string `gorm:"type:char(36)" json:"duplicateOfId"`
	AttemptCount  int     `gorm:"not null;default:0" json:"attemptCount"`
	// PartyName 与 Region 在上传时根据文件名推断，供前端列表页筛选。
	PartyName   string     `gorm:"type:varchar(64)" json:"partyName"`
	Region      string     `gorm:"type:varchar(32)" json:"region"`
	UploadedAt  time.Time  `gorm:"autoCreateTime" json:"uploadedAt"`
	ProcessedAt *time.Time `gorm:"default:null" json:"processedAt"`
}

// TableName 指定此模型对应的表名。
func (Document) TableName() string {
	return "documents"
}
