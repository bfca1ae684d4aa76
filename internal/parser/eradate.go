package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"seiji-fund-go/pkg/log"
)

// era 描述一个日本年号及其元年对应的公历基准年。
// 公历年 = baseYear + 年号内年数（令和6年 = 2018 + 6 = 2024）。
type era struct {
	name     string
	abbrev   string
	baseYear int
}

// 支持的三个年号。新年号出现时在此追加即可。
var eras = []era{
	{name: "令和", abbrev: "R", baseYear: 2018},
	{name: "平成", abbrev: "H", baseYear: 1988},
	{name: "昭和", abbrev: "S", baseYear: 1925},
}

var (
	// 年号日期：令和6年5月10日 / R6.5.10 / 令和元年5月10日
	eraDatePattern = regexp.MustCompile(`^(令和|平成|昭和|R|H|S)(元|\d{1,2})[年./](\d{1,2})[月./](\d{1,2})日?$`)
	// 公历日期：2023年4月1日 / 2023/04/01 / 2023-4-1 / 2023.4.1
	gregorianPattern = regexp.MustCompile(`^(\d{4})[年/.\-](\d{1,2})[月/.\-](\d{1,2})日?$`)
	isoDatePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ConvertEraDate 将年号日期或公历日期字符串转换为 ISO 格式（YYYY-MM-DD）。
// 优先尝试年号格式，其次尝试公历格式（年份需落在 [1900, 2100] 内）；
// 两者都不匹配时原样返回输入并记录日志，绝不报错——下游把未转换的
// 字符串当作"未解析日期"处理，而不是崩溃。
func ConvertEraDate(input string) string {
	s := normalizeCell(input)
	if s == "" {
		return input
	}

	if m := eraDatePattern.FindStringSubmatch(s); m != nil {
		eraYear := 1 // "元年" 即年号第一年
		if m[2] != "元" {
			eraYear, _ = strconv.Atoi(m[2])
		}
		month, _ := strconv.Atoi(m[3])
		day, _ := strconv.Atoi(m[4])
		base, ok := lookupEraBase(m[1])
		if ok && eraYear >= 1 && validMonthDay(month, day) {
			return fmt.Sprintf("%04d-%02d-%02d", base+eraYear, month, day)
		}
	}

	if m := gregorianPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		// 四位数字并不一定是年份，限定合理区间做兜底校验
		if year >= 1900 && year <= 2100 && validMonthDay(month, day) {
			return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
		}
	}

	log.Warnf("[Parser] 日期无法解析，保留原文: %q", input)
	return input
}

// ToISODate 尝试把日期字符串转换为 ISO 格式；失败时返回 nil。
// 用于入库字段：未解析的日期保留在原始行文本中，不写入日期列。
func ToISODate(input string) *string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	converted := ConvertEraDate(input)
	if isoDatePattern.MatchString(converted) {
		return &converted
	}
	return nil
}

// lookupEraBase 根据年号全称或缩写查找公历基准年。
func lookupEraBase(token string) (int, bool) {
	for _, e := range eras {
		if token == e.name || token == e.abbrev {
			return e.baseYear, true
		}
	}
	return 0, false
}

func validMonthDay(month, day int) bool {
	return month >= 1 && month <= 12 && day >= 1 && day <= 31
}
