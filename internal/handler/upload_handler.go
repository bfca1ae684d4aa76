// Package handler 实现 HTTP 接口层。
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"seiji-fund-go/internal/service"
	"seiji-fund-go/pkg/log"
)

// UploadHandler 文档上传接口。
type UploadHandler struct {
	uploadService service.UploadService
}

// NewUploadHandler 创建上传接口处理器。
func NewUploadHandler(uploadService service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// Upload 处理 POST /api/v1/documents/upload，接收 multipart 字段 file。
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 file 字段"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取上传文件失败"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取上传文件失败"})
		return
	}

	result, err := h.uploadService.Upload(c.Request.Context(),
		fileHeader.Filename, data, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidFileType) || errors.Is(err, service.ErrFileTooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("[Handler] 上传失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "上传失败"})
		return
	}

	status := http.StatusCreated
	if result.IsDuplicate {
		status = http.StatusOK
	}
	c.JSON(status, result)
}
