package controllers

import (
	"io"
	"net/http"

	"github.com/labrag/backend-go/app/bootstrap"
	"github.com/labrag/backend-go/internal/config"
	"github.com/labrag/backend-go/internal/knowledge"
	"github.com/labrag/backend-go/internal/logger"
	"go.uber.org/zap"
)

// DocumentController 文档管理接口
type DocumentController struct {
	BaseController
}

// Upload 上传并摄取文档
// POST /api/documents/upload?replace=true
func (c *DocumentController) Upload() {
	app := bootstrap.GetApp()
	if app == nil {
		c.JSONError(http.StatusServiceUnavailable, "服务未初始化")
		return
	}

	file, header, err := c.GetFile("file")
	if err != nil {
		c.JSONError(http.StatusBadRequest, "缺少上传文件")
		return
	}
	defer file.Close()

	cfg := config.GetAppConfig()
	if cfg != nil && cfg.FileUpload.MaxSizeMB > 0 {
		maxBytes := int64(cfg.FileUpload.MaxSizeMB) << 20
		if header.Size > maxBytes {
			c.JSONError(http.StatusRequestEntityTooLarge, "文件大小超出限制")
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Error("读取上传文件失败", zap.String("filename", header.Filename), zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "读取上传文件失败")
		return
	}

	opts := knowledge.IngestOptions{
		Replace: c.GetString("replace") == "true",
	}

	summary, err := app.Ingestor().Ingest(c.Ctx.Request.Context(), header.Filename, data, opts)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(summary)
}

// List 列出已入库文档
// GET /api/documents?filename=xxx
func (c *DocumentController) List() {
	app := bootstrap.GetApp()
	if app == nil {
		c.JSONError(http.StatusServiceUnavailable, "服务未初始化")
		return
	}

	ctx := c.Ctx.Request.Context()

	var (
		infos []knowledge.DocumentInfo
		err   error
	)
	if filename := c.GetString("filename"); filename != "" {
		infos, err = app.MetadataTool().FindByFilename(ctx, filename)
	} else {
		infos, err = app.MetadataTool().ListDocuments(ctx)
	}
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"documents": infos,
		"total":     len(infos),
	})
}

// Get 查询单个文档的元信息
// GET /api/documents/:id
func (c *DocumentController) Get() {
	app := bootstrap.GetApp()
	if app == nil {
		c.JSONError(http.StatusServiceUnavailable, "服务未初始化")
		return
	}

	documentID := c.Ctx.Input.Param(":id")
	if documentID == "" {
		c.JSONError(http.StatusBadRequest, "文档ID不能为空")
		return
	}

	info, err := app.MetadataTool().GetDocumentInfo(c.Ctx.Request.Context(), documentID)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(info)
}

// Delete 删除文档及其全部分块
// DELETE /api/documents/:id
func (c *DocumentController) Delete() {
	app := bootstrap.GetApp()
	if app == nil {
		c.JSONError(http.StatusServiceUnavailable, "服务未初始化")
		return
	}

	documentID := c.Ctx.Input.Param(":id")
	if documentID == "" {
		c.JSONError(http.StatusBadRequest, "文档ID不能为空")
		return
	}

	if err := app.Ingestor().Delete(c.Ctx.Request.Context(), documentID); err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"document_id": documentID,
		"deleted":     true,
	})
}

// Stats 知识库整体统计
// GET /api/documents/stats
func (c *DocumentController) Stats() {
	app := bootstrap.GetApp()
	if app == nil {
		c.JSONError(http.StatusServiceUnavailable, "服务未初始化")
		return
	}

	stats, err := app.MetadataTool().CollectionStats(c.Ctx.Request.Context())
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(stats)
}
