// Package pdfparse 提供本地 PDF 文本提取能力。
package pdfparse

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"seiji-fund-go/pkg/log"
)

// Extractor 基于嵌入文本层的 PDF 解析器。扫描件（无文本层）会
// 提取出空白文本并报错，由上层决定是否重试或转交外部 OCR。
type Extractor struct{}

// NewExtractor 创建本地 PDF 解析器。
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractText 逐页提取 PDF 的纯文本。单页失败只记日志跳过，
// 全部页面都提不出内容才返回错误。
func (e *Extractor) ExtractText(_ context.Context, data []byte, fileName string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("文件内容为空: %s", fileName)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("解析 PDF 失败: %w", err)
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Warnf("[PDF] %s 第 %d 页提取失败: %v", fileName, i, err)
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("PDF 无文本层，可能是扫描件: %s", fileName)
	}
	return text, nil
}
