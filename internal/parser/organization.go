package parser

import (
	"errors"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ErrOrganizationNotResolved 表示无法从文本和文件名中确定团体名称或报告年度。
// 这是结构化阶段的必填字段契约：缺失时该文档的结构化处理失败。
var ErrOrganizationNotResolved = errors.New("无法识别团体名称或报告年度")

var (
	// 报告书正文中的团体名称标注行，例如 "政治団体の名称　○○後援会"
	orgNamePattern = regexp.MustCompile(`(?:政治団体の名称|団体の名称|資金管理団体の名称|名称)[\s　:：]*(.+)`)
	// 报告年度："令和5年分" / "平成30年分" / "2023年分"
	eraYearPattern      = regexp.MustCompile(`(令和|平成|昭和)(元|\d{1,2})年分?`)
	gregorianYearInText = regexp.MustCompile(`(\d{4})年分?`)
)

// ResolveOrganization 从提取文本中识别团体名称与报告年度；
// 文本中识别不到时退回到文件名解析。两者都失败则返回
// ErrOrganizationNotResolved。
func ResolveOrganization(text, fileName string) (string, int, error) {
	name := resolveNameFromText(text)
	year := resolveYear(text)

	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if name == "" {
		name = resolveNameFromFileName(base)
	}
	if year == 0 {
		year = resolveYear(base)
	}

	if name == "" || year == 0 {
		return "", 0, ErrOrganizationNotResolved
	}
	return name, year, nil
}

// resolveNameFromText 在文本前若干行中寻找团体名称标注。
func resolveNameFromText(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := orgNamePattern.FindStringSubmatch(line); m != nil {
			name := strings.TrimSpace(strings.Trim(m[1], "　"))
			if name != "" {
				return name
			}
		}
	}
	return ""
}

// resolveYear 在字符串中寻找报告年度，年号格式优先。
func resolveYear(s string) int {
	normalized := NormalizeWidth(s)
	if m := eraYearPattern.FindStringSubmatch(normalized); m != nil {
		eraYear := 1
		if m[2] != "元" {
			eraYear, _ = strconv.Atoi(m[2])
		}
		if base, ok := lookupEraBase(m[1]); ok {
			return base + eraYear
		}
	}
	if m := gregorianYearInText.FindStringSubmatch(normalized); m != nil {
		year, _ := strconv.Atoi(m[1])
		if year >= 1900 && year <= 2100 {
			return year
		}
	}
	return 0
}

// resolveNameFromFileName 把文件名主干去掉年度标记和分隔符后当作团体名。
// 例如 "自由民主党東京都支部_令和5年.pdf" -> "自由民主党東京都支部"。
func resolveNameFromFileName(base string) string {
	normalized := NormalizeWidth(base)
	normalized = eraYearPattern.ReplaceAllString(normalized, "")
	normalized = gregorianYearInText.ReplaceAllString(normalized, "")
	normalized = strings.Trim(normalized, "_-－ 　()（）")
	return strings.TrimSpace(normalized)
}
