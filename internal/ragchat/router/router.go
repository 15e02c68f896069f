// Package router registers the RAG chat routes.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	// swagger docs
	_ "github.com/kart-io/ragchat/api/swagger"
	"github.com/kart-io/ragchat/internal/ragchat/handler"
)

// Register registers the HTTP routes on engine.
func Register(engine *gin.Engine, chat *handler.ChatHandler, health *handler.HealthHandler) {
	logger.Info("Registering RAG chat routes...")

	engine.GET("/healthz", health.Healthz)
	engine.GET("/metrics", chat.Metrics)

	v1 := engine.Group("/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", chat.CreateSession)
			sessions.DELETE("/:id", chat.DeleteSession)
			sessions.GET("/:id/history", chat.History)
		}

		v1.POST("/chat", chat.Chat)
		v1.POST("/documents", chat.UploadDocument)
		v1.GET("/stats", chat.Stats)
	}

	logger.Info("HTTP routes registered")
}

// RegisterSwagger 注册 Swagger UI 路由，访问地址: /swagger/index.html
func RegisterSwagger(engine *gin.Engine) {
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	logger.Info("Swagger UI registered at /swagger/index.html")
}
