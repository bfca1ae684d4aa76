// Package es 封装 Elasticsearch 的索引与检索操作。
package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"seiji-fund-go/internal/config"
	"seiji-fund-go/internal/model"
	"seiji-fund-go/pkg/log"
)

// Indexer 绑定了索引名的 Elasticsearch 客户端。
type Indexer struct {
	client    *elasticsearch.Client
	indexName string
}

// New 创建客户端并确保索引存在。dims 是向量维度，必须与
// Embedding 模型输出一致。
func New(cfg config.ElasticsearchConfig, dims int) (*Indexer, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: strings.Split(cfg.Addresses, ","),
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 Elasticsearch 客户端失败: %w", err)
	}

	idx := &Indexer{client: client, indexName: cfg.IndexName}
	if err := idx.ensureIndex(dims); err != nil {
		return nil, err
	}
	return idx, nil
}

// ensureIndex 索引不存在时按映射创建。
func (x *Indexer) ensureIndex(dims int) error {
	res, err := x.client.Indices.Exists([]string{x.indexName})
	if err != nil {
		return fmt.Errorf("检查索引失败: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_id":      {"type": "keyword"},
				"document_id":   {"type": "keyword"},
				"chunk_index":   {"type": "integer"},
				"text_content":  {"type": "text"},
				"vector":        {"type": "dense_vector", "dims": %d, "index": true, "similarity": "cosine"},
				"model_version": {"type": "keyword"},
				"file_name":     {"type": "keyword"},
				"party_name":    {"type": "keyword"},
				"region":        {"type": "keyword"}
			}
		}
	}`, dims)

	createRes, err := x.client.Indices.Create(x.indexName,
		x.client.Indices.Create.WithBody(strings.NewReader(mapping)))
	if err != nil {
		return fmt.Errorf("创建索引失败: %w", err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		return fmt.Errorf("创建索引失败: %s", readError(createRes))
	}
	log.Infof("索引 %s 创建成功", x.indexName)
	return nil
}

// IndexChunks 逐条写入分块文档，文档 ID 为 chunk_id，重复写入为覆盖。
func (x *Indexer) IndexChunks(ctx context.Context, chunks []model.ChunkDocument) error {
	for _, chunk := range chunks {
		payload, err := json.Marshal(chunk)
		if err != nil {
			return fmt.Errorf("序列化分块 %s 失败: %w", chunk.ChunkID, err)
		}
		req := esapi.IndexRequest{
			Index:      x.indexName,
			DocumentID: chunk.ChunkID,
			Body:       bytes.NewReader(payload),
		}
		res, err := req.Do(ctx, x.client)
		if err != nil {
			return fmt.Errorf("写入分块 %s 失败: %w", chunk.ChunkID, err)
		}
		res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("写入分块 %s 失败: %s", chunk.ChunkID, res.Status())
		}
	}
	return nil
}

// DeleteByDocumentID 删除某个文档的全部分块。
func (x *Indexer) DeleteByDocumentID(ctx context.Context, documentID string) error {
	query := fmt.Sprintf(`{"query": {"term": {"document_id": %q}}}`, documentID)
	res, err := x.client.DeleteByQuery(
		[]string{x.indexName},
		strings.NewReader(query),
		x.client.DeleteByQuery.WithContext(ctx),
		x.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("删除文档 %s 的分块失败: %w", documentID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("删除文档 %s 的分块失败: %s", documentID, readError(res))
	}
	return nil
}

// Search 混合检索：向量 KNN 与关键词匹配各占一路，由 ES 合并打分。
func (x *Indexer) Search(ctx context.Context, queryText string, queryVector []float32, size int) ([]model.SearchHit, error) {
	if size <= 0 {
		size = 10
	}
	body := map[string]interface{}{
		"size": size,
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   queryVector,
			"k":              size,
			"num_candidates": size * 10,
		},
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"text_content": queryText,
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化检索请求失败: %w", err)
	}

	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(x.indexName),
		x.client.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("检索失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("检索失败: %s", readError(res))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64             `json:"_score"`
				Source model.ChunkDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("解析检索结果失败: %w", err)
	}

	hits := make([]model.SearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, model.SearchHit{
			DocumentID:  h.Source.DocumentID,
			FileName:    h.Source.FileName,
			ChunkIndex:  h.Source.ChunkIndex,
			TextContent: h.Source.TextContent,
			Score:       h.Score,
		})
	}
	return hits, nil
}

func readError(res *esapi.Response) string {
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	return string(msg)
}
