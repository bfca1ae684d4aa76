package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"seiji-fund-go/internal/service"
	"seiji-fund-go/pkg/log"
)

// SearchHandler 语义检索接口。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建检索处理器。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// Search 处理 GET /api/v1/search?q=...&size=10。
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

	hits, err := h.searchService.Search(c.Request.Context(), query, size)
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("[Handler] 检索失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "检索失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits, "total": len(hits)})
}
