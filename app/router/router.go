package router

import (
	"github.com/beego/beego/v2/server/web"
	"github.com/labrag/backend-go/app/controllers"
	"github.com/labrag/backend-go/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Init 注册全部路由，须在配置加载之后调用
func Init() {
	web.Router("/health", &controllers.HealthController{}, "get:Health")

	if cfg := config.GetAppConfig(); cfg == nil || cfg.Prometheus.Enabled {
		web.Handler("/metrics", promhttp.Handler())
	}

	// 文档管理路由
	documentController := &controllers.DocumentController{}
	web.Router("/api/documents/upload", documentController, "post:Upload")
	// 注意：具体路由必须在参数路由之前，否则/stats会被:id匹配
	web.Router("/api/documents/stats", documentController, "get:Stats")
	web.Router("/api/documents", documentController, "get:List")
	web.Router("/api/documents/:id", documentController, "get:Get;delete:Delete")

	// 检索路由
	web.Router("/api/search", &controllers.SearchController{}, "post:Search")
}
