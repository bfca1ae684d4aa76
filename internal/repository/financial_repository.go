package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"seiji-fund-go/internal/model"
)

// FinancialRepository 政治团体与收支明细数据访问接口。
type FinancialRepository interface {
	// UpsertOrganization 按 名称+年度 幂等写入团体，返回团体 ID。
	UpsertOrganization(org *model.FundOrganization) (string, error)
	// ReplaceRecords 原子替换某文档解析出的全部收支明细。
	ReplaceRecords(sourceDocumentID, organizationID string,
		income []model.IncomeRecord, expenditure []model.ExpenditureRecord) error
	DeleteBySourceDocument(sourceDocumentID string) error
	FindOrganizations() ([]model.FundOrganization, error)
}

type financialRepository struct {
	db *gorm.DB
}

// NewFinancialRepository 创建财务仓储实例。
func NewFinancialRepository(db *gorm.DB) FinancialRepository {
	return &financialRepository{db: db}
}

func (r *financialRepository) UpsertOrganization(org *model.FundOrganization) (string, error) {
	var id string
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing model.FundOrganization
		err := tx.Where("name = ? AND report_year = ?", org.Name, org.ReportYear).
			First(&existing).Error
		if err == nil {
			id = existing.ID
			return tx.Model(&existing).Updates(map[string]interface{}{
				"total_income":       org.TotalIncome,
				"total_expenditure":  org.TotalExpenditure,
				"source_document_id": org.SourceDocumentID,
				"updated_at":         time.Now(),
			}).Error
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		org.ID = uuid.NewString()
		org.UpdatedAt = time.Now()
		id = org.ID
		return tx.Create(org).Error
	})
	return id, err
}

func (r *financialRepository) ReplaceRecords(sourceDocumentID, organizationID string,
	income []model.IncomeRecord, expenditure []model.ExpenditureRecord) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_document_id = ?", sourceDocumentID).
			Delete(&model.IncomeRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("source_document_id = ?", sourceDocumentID).
			Delete(&model.ExpenditureRecord{}).Error; err != nil {
			return err
		}
		for i := range income {
			income[i].OrganizationID = organizationID
			income[i].SourceDocumentID = sourceDocumentID
		}
		for i := range expenditure {
			expenditure[i].OrganizationID = organizationID
			expenditure[i].SourceDocumentID = sourceDocumentID
		}
		if len(income) > 0 {
			if err := tx.CreateInBatches(income, 100).Error; err != nil {
				return err
			}
		}
		if len(expenditure) > 0 {
			if err := tx.CreateInBatches(expenditure, 100).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *financialRepository) DeleteBySourceDocument(sourceDocumentID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_document_id = ?", sourceDocumentID).
			Delete(&model.IncomeRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("source_document_id = ?", sourceDocumentID).
			Delete(&model.ExpenditureRecord{}).Error
	})
}

func (r *financialRepository) FindOrganizations() ([]model.FundOrganization, error) {
	var orgs []model.FundOrganization
	err := r.db.Order("report_year DESC, name ASC").Find(&orgs).Error
	return orgs, err
}
