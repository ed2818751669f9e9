package bootstrap

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labrag/backend-go/internal/config"
	"github.com/labrag/backend-go/internal/di"
	"github.com/labrag/backend-go/internal/knowledge"
	"github.com/labrag/backend-go/internal/logger"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks []func() error

	ingestor     *knowledge.Ingestor
	retriever    *knowledge.Retriever
	metadataTool *knowledge.MetadataTool
	store        knowledge.VectorStore
}

// Global app instance for controllers to access
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// SetGlobalApp sets the global app instance
func SetGlobalApp(app *App) {
	globalApp = app
}

// Ingestor 文档摄取服务
func (a *App) Ingestor() *knowledge.Ingestor {
	return a.ingestor
}

// Retriever 语义检索服务
func (a *App) Retriever() *knowledge.Retriever {
	return a.retriever
}

// MetadataTool 元数据查询服务
func (a *App) MetadataTool() *knowledge.MetadataTool {
	return a.metadataTool
}

// Store 向量存储
func (a *App) Store() knowledge.VectorStore {
	return a.store
}

// Init bootstraps configuration, logger, the DI container and the knowledge
// pipeline components required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	// Load dynamic configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}

	app := &App{}

	container := di.InitContainer()
	if err := di.RegisterProviders(container); err != nil {
		return nil, err
	}

	err := di.Invoke(func(
		ingestor *knowledge.Ingestor,
		retriever *knowledge.Retriever,
		metadataTool *knowledge.MetadataTool,
		store knowledge.VectorStore,
	) {
		app.ingestor = ingestor
		app.retriever = retriever
		app.metadataTool = metadataTool
		app.store = store
	})
	if err != nil {
		return nil, err
	}

	app.cleanupTasks = append(app.cleanupTasks, func() error {
		return app.store.Close()
	})

	if !app.store.Ready() {
		logger.Warn("Vector store is not ready")
	}

	SetGlobalApp(app)
	return app, nil
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}

	// Flush logger buffers.
	logger.Sync()
}
