// Package router wires the QA HTTP routes.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/anchora/internal/qa/biz"
	"github.com/kart-io/anchora/internal/qa/handler"
)

// New builds the gin engine with all QA routes registered.
func New(mode string, service *biz.Service, uploadDir string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}

	engine := gin.New()
	engine.Use(RequestID(), AccessLog(), Recovery())

	chatHandler := handler.NewChatHandler(service)
	docHandler := handler.NewDocumentHandler(service, uploadDir)
	evalHandler := handler.NewEvaluationHandler(service)
	healthHandler := handler.NewHealthHandler(service)

	engine.GET("/healthz", healthHandler.Healthz)

	api := engine.Group("/api")
	{
		api.POST("/chat", chatHandler.Chat)
		api.POST("/evaluation", evalHandler.Evaluate)

		docs := api.Group("/documents")
		{
			docs.GET("", docHandler.List)
			docs.POST("/upload", docHandler.Upload)
			docs.POST("/index", docHandler.Index)
			docs.GET("/indexed", docHandler.ListIndexed)
			docs.DELETE("/indexed/:source", docHandler.Delete)
			docs.GET("/view/:source", docHandler.View)
		}
	}

	return engine
}
