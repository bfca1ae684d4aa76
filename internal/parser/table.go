package parser

import (
	"strconv"
	"strings"
	"unicode"
)

// Table 是从文档中提取的一张表格：一行表头加若干明细行。
// 表格可能来自外部 Document AI 服务的版面分析，也可能由本地
// 文本启发式重建（见 text_tables.go）。
type Table struct {
	Header []string
	Rows   [][]string
}

// TableKind 表示表格的收支类型。
type TableKind string

const (
	KindIncome      TableKind = "income"
	KindExpenditure TableKind = "expenditure"
	KindUnknown     TableKind = "unknown"
)

var (
	incomeTerms      = []string{"収入", "寄附", "寄付", "交付金", "会費", "党費"}
	expenditureTerms = []string{"支出", "経費", "支払"}
)

// ClassifyTable 根据表头整体文本判定表格类型。
// 表头同时出现收入与支出词汇时支出优先；两类词汇都没有则无法分类，
// 该表被跳过而不是报错。
func ClassifyTable(header []string) TableKind {
	joined := normalizeCell(strings.Join(header, ""))
	for _, term := range expenditureTerms {
		if strings.Contains(joined, term) {
			return KindExpenditure
		}
	}
	for _, term := range incomeTerms {
		if strings.Contains(joined, term) {
			return KindIncome
		}
	}
	return KindUnknown
}

// ParsedRow 是一条通过过滤的收支明细行。
type ParsedRow struct {
	// Date 为 ISO 日期；原文日期无法解析时为 nil。
	Date                *string
	Description         string
	Amount              int64
	CounterpartyName    string
	CounterpartyAddress string
	// RawText 保留整行原始文本（各单元格以空格拼接），用于审计。
	RawText string
}

// ParseRows 按照表头列映射解析所有明细行。
// 金额缺失/非正或摘要为空的行被直接丢弃（不入库为零值垃圾行）。
func ParseRows(t Table, m ColumnMap) []ParsedRow {
	if !m.HasAmount() {
		return nil
	}

	rows := make([]ParsedRow, 0, len(t.Rows))
	for _, cells := range t.Rows {
		amount := ParseAmount(cellAt(cells, m.Amount))
		description := strings.TrimSpace(cellAt(cells, m.Description))
		name := strings.TrimSpace(cellAt(cells, m.Name))
		if description == "" {
			// 寄附者一覧之类的表没有摘要列，相手方名称即描述
			description = name
		}
		if amount <= 0 || description == "" {
			continue
		}
		row := ParsedRow{
			Date:                ToISODate(cellAt(cells, m.Date)),
			Description:         description,
			Amount:              amount,
			CounterpartyName:    name,
			CounterpartyAddress: strings.TrimSpace(cellAt(cells, m.Address)),
			RawText:             strings.TrimSpace(strings.Join(cells, " ")),
		}
		rows = append(rows, row)
	}
	return rows
}

// ParseAmount 从金额单元格中提取整数金额（单位：日元）。
// 先做全角转半角，再剥除所有非数字字符："1,000,000円" -> 1000000，
// "¥0" -> 0。无数字可提取时返回 0，由调用方的行过滤兜底。
func ParseAmount(s string) int64 {
	normalized := NormalizeWidth(s)
	var digits strings.Builder
	for _, r := range normalized {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	amount, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0
	}
	return amount
}

// cellAt 安全取列：下标为 -1（未识别）或越界时返回空串。
func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}
