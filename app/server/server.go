package server

import (
	"context"
	"net/http"

	"stream-porter/app/config"
	"stream-porter/app/handler"
	"stream-porter/app/logger"
	"stream-porter/app/middleware"
	"stream-porter/app/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Server 状态查询 API 服务器
type Server struct {
	Config *config.Config
	Logger *logger.Logger
	gin    *gin.Engine
	http   *http.Server
	queue  *service.DownloadQueue
	db     *gorm.DB
}

// New 创建一个新的 Server 实例
func New(cfg *config.Config, queue *service.DownloadQueue, db *gorm.DB, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		gin: router,
		http: &http.Server{
			Addr:    ":" + cfg.API.Port,
			Handler: router,
		},
		Config: cfg,
		Logger: log,
		queue:  queue,
		db:     db,
	}

	s.setupRoutes()
	return s
}

// Start 启动服务器
func (s *Server) Start() error {
	s.Logger.Infof("在端口 %s 启动状态 API", s.Config.API.Port)
	return s.http.ListenAndServe()
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes() {
	authHandler := handler.NewAuthHandler(s.Config, s.db)
	queueHandler := handler.NewQueueHandler(s.queue, s.db)

	api := s.gin.Group("/api")

	// 认证相关路由（不需要JWT验证）
	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
	}

	// 需要JWT验证的路由
	protected := api.Group("/")
	protected.Use(middleware.JWTAuth(s.Config))
	{
		protected.GET("/me", authHandler.Me)

		queue := protected.Group("/queue")
		{
			queue.GET("/stats", queueHandler.Stats)
		}

		tasks := protected.Group("/tasks")
		{
			tasks.GET("/", queueHandler.ListTasks)
			tasks.GET("/:id", queueHandler.GetTask)
			tasks.DELETE("/:id", queueHandler.CancelTask)
		}

		protected.GET("/archive", queueHandler.ListArchive)
	}
}
