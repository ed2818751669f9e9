package controllers

import (
	"net/http"

	"github.com/labrag/backend-go/app/bootstrap"
)

// HealthController 健康检查接口
type HealthController struct {
	BaseController
}

// Health 返回服务与向量存储的健康状态
// GET /health
func (c *HealthController) Health() {
	status := "ok"
	storeReady := false

	if app := bootstrap.GetApp(); app != nil && app.Store() != nil {
		storeReady = app.Store().Ready()
	}
	if !storeReady {
		status = "degraded"
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"status":             status,
		"vector_store_ready": storeReady,
	})
}
