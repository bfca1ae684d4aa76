package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seiji-fund-go/internal/service"
	"seiji-fund-go/pkg/log"
)

// CronHandler 定时批处理入口。由外部调度器（K8s CronJob 等）定期调用。
type CronHandler struct {
	indexService service.IndexService
}

// NewCronHandler 创建定时任务处理器。
func NewCronHandler(indexService service.IndexService) *CronHandler {
	return &CronHandler{indexService: indexService}
}

// ProcessQueue 处理 GET /api/v1/cron/process-queue。
func (h *CronHandler) ProcessQueue(c *gin.Context) {
	summary, err := h.indexService.ProcessQueue(c.Request.Context())
	if err != nil {
		log.Errorf("[Handler] 批处理失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "批处理失败"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
