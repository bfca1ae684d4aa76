package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seiji-fund-go/internal/service"
)

// IndexRequest 手动触发处理的请求体。
type IndexRequest struct {
	DocumentIDs    []string `json:"documentIds"`
	ForceReprocess bool     `json:"reprocess"`
}

// IndexHandler 手动触发文档处理的接口。
type IndexHandler struct {
	indexService service.IndexService
}

// NewIndexHandler 创建处理接口处理器。
func NewIndexHandler(indexService service.IndexService) *IndexHandler {
	return &IndexHandler{indexService: indexService}
}

// Index 处理 POST /api/v1/documents/index。
// 始终返回 200 与逐文档的结果列表，单个文档失败不影响整体响应。
func (h *IndexHandler) Index(c *gin.Context) {
	var req IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式错误"})
		return
	}
	if len(req.DocumentIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "documentIds 不能为空"})
		return
	}

	results := h.indexService.IndexDocuments(c.Request.Context(), req.DocumentIDs, req.ForceReprocess)
	c.JSON(http.StatusOK, gin.H{"results": results})
}
