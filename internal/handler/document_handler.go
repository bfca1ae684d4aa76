package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seiji-fund-go/internal/service"
	"seiji-fund-go/pkg/log"
)

// DocumentHandler 文档管理接口。
type DocumentHandler struct {
	documentService service.DocumentService
}

// NewDocumentHandler 创建文档管理处理器。
func NewDocumentHandler(documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// List 处理 GET /api/v1/documents。
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documentService.List()
	if err != nil {
		log.Errorf("[Handler] 查询文档列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询文档列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "total": len(docs)})
}

// Get 处理 GET /api/v1/documents/:id。
func (h *DocumentHandler) Get(c *gin.Context) {
	detail, err := h.documentService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Delete 处理 DELETE /api/v1/documents/:id。
func (h *DocumentHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.documentService.Delete(c.Request.Context(), id); err != nil {
		log.Errorf("[Handler] 删除文档 %s 失败: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}
