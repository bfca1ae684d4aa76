package model

// EmbeddingChunk 对应 embedding_chunks 表，保存文档切块及其向量。
// 同一文档的 chunk_index 从 0 起连续；重建索引时整组删除后重插，
// 不会出现两代分块并存。
type EmbeddingChunk struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID string `gorm:"type:char(36);not null;index;column:document_id" json:"documentId"`
	ChunkIndex int    `gorm:"not null;column:chunk_index" json:"chunkIndex"`
	ChunkText  string `gorm:"type:text;not null" json:"chunkText"`
	// Vector 以 JSON 数组形式存储（MySQL 无向量类型），ES 侧保存同一向量用于检索。
	Vector       []float32 `gorm:"serializer:json;type:json" json:"-"`
	ModelVersion string    `gorm:"type:varchar(64)" json:"modelVersion"`
}

// TableName 指定此模型对应的表名。
func (EmbeddingChunk) TableName() string {
	return "embedding_chunks"
}

// ChunkDocument 是写入 Elasticsearch 的分块文档结构。
type ChunkDocument struct {
	ChunkID      string    `json:"chunk_id"` // <documentID>_<chunkIndex>
	DocumentID   string    `json:"document_id"`
	ChunkIndex   int       `json:"chunk_index"`
	TextContent  string    `json:"text_content"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
	FileName     string    `json:"file_name"`
	PartyName    string    `json:"party_name"`
	Region       string    `json:"region"`
}

// SearchHit 是返回给前端的检索结果结构。
type SearchHit struct {
	DocumentID  string  `json:"documentId"`
	FileName    string  `json:"fileName"`
	ChunkIndex  int     `json:"chunkIndex"`
	TextContent string  `json:"textContent"`
	Score       float64 `json:"score"`
}
