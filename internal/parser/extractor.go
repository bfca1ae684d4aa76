package parser

import (
	"fmt"

	"seiji-fund-go/pkg/log"
)

// Report 是一份收支报告书的结构化解析结果。
type Report struct {
	OrganizationName string
	ReportYear       int
	Income           []ParsedRow
	Expenditure      []ParsedRow
	TableErrors      []error
}

// TotalIncome 收入合计（円）。
func (r *Report) TotalIncome() int64 {
	var total int64
	for _, row := range r.Income {
		total += row.Amount
	}
	return total
}

// TotalExpenditure 支出合计（円）。
func (r *Report) TotalExpenditure() int64 {
	var total int64
	for _, row := range r.Expenditure {
		total += row.Amount
	}
	return total
}

// RecordCount 全明细条数。
func (r *Report) RecordCount() int {
	return len(r.Income) + len(r.Expenditure)
}

// Extract 把提取文本和表格组装成结构化报告。
//
// 团体名称和报告年度是硬性要求，解析不到则整体失败；单个表格
// 解析失败只累积到 TableErrors，不中断其余表格。tables 为空时
// 回退到从纯文本重建表格。
func Extract(text, fileName string, tables []Table) (*Report, error) {
	orgName, year, err := ResolveOrganization(text, fileName)
	if err != nil {
		return nil, err
	}

	if len(tables) == 0 {
		tables = ExtractTablesFromText(text)
		log.Infof("[Parser] 未提供表格，从文本重建出 %d 个表格", len(tables))
	}

	report := &Report{OrganizationName: orgName, ReportYear: year}
	for i, t := range tables {
		kind := ClassifyTable(t.Header)
		if kind == KindUnknown {
			log.Infof("[Parser] 表格 %d 无法判定收支类型，跳过", i)
			continue
		}
		m := ClassifyHeader(t.Header)
		if !m.HasAmount() {
			report.TableErrors = append(report.TableErrors,
				fmt.Errorf("表格 %d: 表头缺少金额列: %v", i, t.Header))
			continue
		}
		rows := ParseRows(t, m)
		if len(rows) == 0 && len(t.Rows) > 0 {
			// 有明细行却一条都解析不出来，说明列映射可能错了
			report.TableErrors = append(report.TableErrors,
				fmt.Errorf("表格 %d: %d 行明细无一解析成功", i, len(t.Rows)))
			continue
		}
		switch kind {
		case KindIncome:
			report.Income = append(report.Income, rows...)
		case KindExpenditure:
			report.Expenditure = append(report.Expenditure, rows...)
		}
	}

	log.Infof("[Parser] 解析完成: 团体=%s 年度=%d 收入明细=%d 支出明细=%d 表格错误=%d",
		orgName, year, len(report.Income), len(report.Expenditure), len(report.TableErrors))
	return report, nil
}
