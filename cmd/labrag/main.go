package main

import (
	"log"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"github.com/labrag/backend-go/app/bootstrap"
	"github.com/labrag/backend-go/app/router"
	"github.com/labrag/backend-go/internal/config"
	"github.com/labrag/backend-go/internal/logger"
	"go.uber.org/zap"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	router.Init()

	web.BConfig.AppName = "Lab Document Service"
	web.BConfig.CopyRequestBody = true

	port := 8001
	if cfg := config.GetAppConfig(); cfg != nil {
		if p, err := strconv.Atoi(cfg.Server.Port); err == nil && p > 0 {
			port = p
		}
	}
	web.BConfig.Listen.HTTPPort = port

	logger.Info("🚀 Starting Lab Document Service", zap.Int("port", port))
	web.Run()
}
