package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"compress-service/ddd/application/app"
	"compress-service/pkg/config"
	"compress-service/pkg/logger"
	"compress-service/pkg/manager"
	"compress-service/pkg/middleware"
)

// Router 路由配置
type Router struct {
	compressApp app.CompressApp
	jwt         config.JWTConfig
}

// NewRouter 创建路由配置
func NewRouter(compressApp app.CompressApp, jwt config.JWTConfig) *Router {
	return &Router{compressApp: compressApp, jwt: jwt}
}

// SetupRoutes 设置路由
func (r *Router) SetupRoutes(engine *gin.Engine) {
	sessions := NewSessionController(r.compressApp)
	jobs := NewJobController(r.compressApp)

	v1 := engine.Group("/api/v1")
	if r.jwt.Enabled {
		v1.Use(middleware.JWTAuthMiddleware(r.jwt))
	}
	{
		s := v1.Group("/sessions")
		{
			s.POST("", sessions.CreateSession)      // 提交媒体
			s.GET("/me", sessions.GetSession)       // 查看会话
			s.PATCH("/me", sessions.UpdateSession)  // 修改会话字段
			s.DELETE("/me", sessions.DeleteSession) // 放弃会话
		}

		j := v1.Group("/jobs")
		{
			j.POST("", jobs.StartJob) // 启动任务
			j.GET("", jobs.ListJobs)  // 活跃任务列表（管理员）

			j.GET("/:user_id", jobs.GetJob)             // 任务状态
			j.POST("/:user_id/cancel", jobs.CancelJob)  // 取消任务
			j.GET("/:user_id/history", jobs.GetHistory) // 历史记录
		}

		v1.GET("/presets", jobs.ListPresets)
	}

	// 健康检查路由
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "compress-service",
		})
	})
}

// SetupMiddleware 设置中间件
func (r *Router) SetupMiddleware(engine *gin.Engine) {
	// CORS中间件
	engine.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestContextMiddleware())
}

// CompressRoutePlugin registers the HTTP API with the manager.
type CompressRoutePlugin struct{}

func (p *CompressRoutePlugin) Name() string { return "compressRoutes" }

func (p *CompressRoutePlugin) Register(engine *gin.Engine, deps *manager.Dependencies) {
	if deps == nil {
		logger.Warnf("compress routes skipped: no dependencies")
		return
	}
	compressApp, ok := deps.CompressApp.(app.CompressApp)
	if !ok {
		logger.Warnf("compress routes skipped: CompressApp not wired")
		return
	}
	var jwt config.JWTConfig
	if deps.Config != nil {
		jwt = deps.Config.JWT
	}
	r := NewRouter(compressApp, jwt)
	r.SetupMiddleware(engine)
	r.SetupRoutes(engine)
}
