package parser

import "strings"

// ColumnRole 表示表头单元格的语义角色。
type ColumnRole string

const (
	RoleDate        ColumnRole = "date"
	RoleDescription ColumnRole = "description"
	RoleAmount      ColumnRole = "amount"
	RoleName        ColumnRole = "counterparty_name"
	RoleAddress     ColumnRole = "counterparty_address"
)

// headerVocabularies 是各语义角色的表头词表。
// 顺序即匹配优先级：地址词表须先于名称词表检查（"事務所の所在地" 同时
// 含有 "所" 字样），金额词表须先于摘要词表检查（"支出の目的" 类表头）。
var headerVocabularies = []struct {
	role  ColumnRole
	terms []string
}{
	{RoleDate, []string{"年月日", "月日", "日付", "期日", "年月"}},
	{RoleAddress, []string{"住所", "所在地", "事務所"}},
	{RoleAmount, []string{"金額", "収入額", "支出額", "寄附金額"}},
	{RoleName, []string{"寄附者", "氏名", "名称", "支出先", "相手方", "団体名"}},
	{RoleDescription, []string{"摘要", "目的", "項目", "科目", "内容", "件名", "種別"}},
}

// ColumnMap 记录各语义角色对应的列下标，未识别的角色为 -1。
type ColumnMap struct {
	Date        int
	Description int
	Amount      int
	Name        int
	Address     int
}

// HasAmount 判断表头中是否识别出金额列。
// 没有金额列的表格不会产出任何记录（而不是报错）。
func (m ColumnMap) HasAmount() bool {
	return m.Amount >= 0
}

// ClassifyHeader 对表头行做语义分类，返回各角色的列下标。
// 每个单元格先做全角转半角等归一化，再与词表做包含匹配；
// 同一角色出现多列时保留最先出现的那一列。
func ClassifyHeader(header []string) ColumnMap {
	m := ColumnMap{Date: -1, Description: -1, Amount: -1, Name: -1, Address: -1}
	for i, cell := range header {
		normalized := normalizeCell(cell)
		if normalized == "" {
			continue
		}
		role, ok := classifyCell(normalized)
		if !ok {
			continue
		}
		switch role {
		case RoleDate:
			if m.Date < 0 {
				m.Date = i
			}
		case RoleDescription:
			if m.Description < 0 {
				m.Description = i
			}
		case RoleAmount:
			if m.Amount < 0 {
				m.Amount = i
			}
		case RoleName:
			if m.Name < 0 {
				m.Name = i
			}
		case RoleAddress:
			if m.Address < 0 {
				m.Address = i
			}
		}
	}
	return m
}

// classifyCell 把归一化后的表头单元格映射到语义角色。
func classifyCell(cell string) (ColumnRole, bool) {
	for _, vocab := range headerVocabularies {
		for _, term := range vocab.terms {
			if strings.Contains(cell, term) {
				return vocab.role, true
			}
		}
	}
	return "", false
}
