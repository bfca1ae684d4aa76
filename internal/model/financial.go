package model

import "time"

// FundOrganization 对应 fund_organizations 表（资金管理团体）。
// (name, report_year) 是自然键：同一团体同一年度的报告重新入库时原地更新。
type FundOrganization struct {
	ID               string    `gorm:"type:char(36);primaryKey" json:"id"`
	Name             string    `gorm:"type:varchar(255);not null;uniqueIndex:uk_org_name_year,priority:1" json:"name"`
	ReportYear       int       `gorm:"not null;uniqueIndex:uk_org_name_year,priority:2" json:"reportYear"`
	TotalIncome      int64     `gorm:"not null;default:0" json:"totalIncome"`
	TotalExpenditure int64     `gorm:"not null;default:0" json:"totalExpenditure"`
	SourceDocumentID string    `gorm:"type:char(36)" json:"sourceDocumentId"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定此模型对应的表名。
func (FundOrganization) TableName() string {
	return "fund_organizations"
}

// IncomeRecord 对应 income_records 表，一条收入明细行。
// 入库前已通过行过滤：金额为正、摘要非空。
type IncomeRecord struct {
	ID             uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	OrganizationID string `gorm:"type:char(36);not null;index" json:"organizationId"`
	// TransactionDate 为 ISO 日期（YYYY-MM-DD）；原文日期无法解析时为 nil，
	// 原始字符串保留在 RawRowText 中。
	TransactionDate     *string `gorm:"type:varchar(10)" json:"transactionDate"`
	Description         string  `gorm:"type:varchar(512);not null" json:"description"`
	Amount              int64   `gorm:"not null" json:"amount"` // 单位：日元
	CounterpartyName    string  `gorm:"type:varchar(255)" json:"counterpartyName"`
	CounterpartyAddress string  `gorm:"type:varchar(512)" json:"counterpartyAddress"`
	// RawRowText 保留表格原始行文本，用于审计与追溯。
	RawRowText       string `gorm:"type:text" json:"rawRowText"`
	SourceDocumentID string `gorm:"type:char(36);not null;index" json:"sourceDocumentId"`
}

// TableName 指定此模型对应的表名。
func (IncomeRecord) TableName() string {
	return "income_records"
}

// ExpenditureRecord 对应 expenditure_records 表，一条支出明细行。
type ExpenditureRecord struct {
	ID                  uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrganizationID      string  `gorm:"type:char(36);not null;index" json:"organizationId"`
	TransactionDate     *string `gorm:"type:varchar(10)" json:"transactionDate"`
	Description         string  `gorm:"type:varchar(512);not null" json:"description"`
	Amount              int64   `gorm:"not null" json:"amount"`
	CounterpartyName    string  `gorm:"type:varchar(255)" json:"counterpartyName"`
	CounterpartyAddress string  `gorm:"type:varchar(512)" json:"counterpartyAddress"`
	RawRowText          string  `gorm:"type:text" json:"rawRowText"`
	SourceDocumentID    string  `gorm:"type:char(36);not null;index" json:"sourceDocumentId"`
}

// TableName 指定此模型对应的表名。
func (ExpenditureRecord) TableName() string {
	return "expenditure_records"
}
