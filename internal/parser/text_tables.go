package parser

import "strings"

// ExtractTablesFromText 从纯文本中启发式重建表格。
// 未接入外部 Document AI 服务时，本地 PDF 解析只能拿到按行排布的
// 文本，这里把"含金额表头词的行"当作表头、其后的连续非空行当作
// 明细行。精度不如真正的版面分析，但对排版规整的收支报告书足够。
func ExtractTablesFromText(text string) []Table {
	var tables []Table
	var current *Table

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " 　\t")
		if strings.TrimSpace(line) == "" {
			// 空行视为表格结束
			current = flushTable(&tables, current)
			continue
		}

		cells := splitCells(line)
		if isHeaderLine(cells) {
			current = flushTable(&tables, current)
			current = &Table{Header: cells}
			continue
		}
		if current != nil {
			if len(cells) < 2 {
				// 单列行（小计、注记等）不是明细行，结束当前表
				current = flushTable(&tables, current)
				continue
			}
			current.Rows = append(current.Rows, cells)
		}
	}
	flushTable(&tables, current)
	return tables
}

// flushTable 把累积的表格写入结果集（仅当它有明细行）。
func flushTable(tables *[]Table, current *Table) *Table {
	if current != nil && len(current.Rows) > 0 {
		*tables = append(*tables, *current)
	}
	return nil
}

// isHeaderLine 判断一行是否像表头：至少两列，含金额表头词，
// 且还有至少一个其他角色的表头词。
func isHeaderLine(cells []string) bool {
	if len(cells) < 2 {
		return false
	}
	m := ClassifyHeader(cells)
	if !m.HasAmount() {
		return false
	}
	return m.Date >= 0 || m.Description >= 0 || m.Name >= 0 || m.Address >= 0
}

// splitCells 把一行文本切分为单元格：优先按制表符，否则按空白。
func splitCells(line string) []string {
	if strings.Contains(line, "\t") {
		parts := strings.Split(line, "\t")
		cells := make([]string, 0, len(parts))
		for _, p := range parts {
			cells = append(cells, strings.TrimSpace(p))
		}
		return cells
	}
	// 全角空格统一替换后按空白切分
	return strings.Fields(strings.ReplaceAll(line, "　", " "))
}
