// Package parser 实现收支报告书文本的结构化解析：
// 表头语义识别、表格类型判定、明细行提取以及日本年号日期的公历转换。
package parser

import (
	"strings"

	"golang.org/x/text/width"
)

// bracketReplacer 去除表头和日期中常见的全角/半角括号。
var bracketReplacer = strings.NewReplacer(
	"（", "", "）", "",
	"(", "", ")", "",
	"［", "", "］", "",
	"[", "", "]", "",
	"「", "", "」", "",
	"【", "", "】", "",
)

// NormalizeWidth 将全角数字、字母和标点转换为半角。
// 汉字与假名不受影响，例如 "１，０００円" -> "1,000円"。
func NormalizeWidth(s string) string {
	return width.Narrow.String(s)
}

// normalizeCell 对单元格文本做统一预处理：全角转半角、去括号、去首尾及内部空白。
func normalizeCell(s string) string {
	s = NormalizeWidth(s)
	s = bracketReplacer.Replace(s)
	// 表头单元格里混入的空格（含全角空格）一并去掉，便于词表匹配
	s = strings.ReplaceAll(s, "　", "")
	s = strings.ReplaceAll(s, " ", "")
	return strings.TrimSpace(s)
}
