// Package tasks 定义通过消息队列传递的任务结构。
package tasks

// DocumentTask 是投递到 Kafka 的文档处理任务。
type DocumentTask struct {
	DocumentID string `json:"documentId"`
	ObjectKey  string `json:"objectKey"`
	FileName   string `json:"fileName"`
}
