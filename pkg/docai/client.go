// Package docai 封装外部文档解析服务（OCR + 表格版面分析）的 HTTP 客户端。
package docai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"seiji-fund-go/internal/parser"
)

// AnalyzeResult 是解析服务的返回结构。
type AnalyzeResult struct {
	Text   string         `json:"text"`
	Tables []parser.Table `json:"tables"`
}

// Client 文档解析服务客户端。
type Client struct {
	serverURL  string
	httpClient *http.Client
}

// NewClient 创建客户端。serverURL 形如 http://docai:9998。
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Analyze 上传文件并获取文本与表格。
func (c *Client) Analyze(ctx context.Context, data []byte, fileName string) (*AnalyzeResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("写入文件内容失败: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("关闭 multipart writer 失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.serverURL+"/api/v1/analyze", &body)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求文档解析服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("文档解析服务返回 %d: %s", resp.StatusCode, string(msg))
	}

	var result AnalyzeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	return &result, nil
}

// TextAdapter 把 Client 适配为文本提取接口。
type TextAdapter struct {
	client *Client
}

// NewTextAdapter 创建文本提取适配器。
func NewTextAdapter(client *Client) *TextAdapter {
	return &TextAdapter{client: client}
}

// ExtractText 调用解析服务并返回纯文本。
func (a *TextAdapter) ExtractText(ctx context.Context, data []byte, fileName string) (string, error) {
	result, err := a.client.Analyze(ctx, data, fileName)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// TableAdapter 把 Client 适配为表格提取接口。
type TableAdapter struct {
	client *Client
}

// NewTableAdapter 创建表格提取适配器。
func NewTableAdapter(client *Client) *TableAdapter {
	return &TableAdapter{client: client}
}

// ExtractTables 调用解析服务并返回表格。
func (a *TableAdapter) ExtractTables(ctx context.Context, data []byte, fileName string) ([]parser.Table, error) {
	result, err := a.client.Analyze(ctx, data, fileName)
	if err != nil {
		return nil, err
	}
	return result.Tables, nil
}
