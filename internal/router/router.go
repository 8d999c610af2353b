package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/packflow/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件，用于标识编辑者
	store := cookie.NewStore([]byte(sessionSecret))
	r.Use(sessions.Sessions("packflow_session", store))
	r.Use(handler.EditorSession())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/briefs", api.CreateBrief)
		apiGroup.GET("/briefs", api.ListBriefs)

		apiGroup.GET("/packs", api.ListPacks)
		apiGroup.POST("/packs/from-brief/:briefId", api.CreatePackFromBrief)
		apiGroup.POST("/packs/update-status", api.UpdatePackStatus)
		apiGroup.POST("/packs/derivatives", api.GenerateDerivatives)
		apiGroup.GET("/packs/:id", api.GetPack)
		apiGroup.PUT("/packs/:id", api.UpdateDraft)
		apiGroup.DELETE("/packs/:id", api.DeletePack)

		apiGroup.GET("/packs/:id/derivatives", api.GetDerivatives)
		apiGroup.POST("/packs/:id/derivatives/regenerate", api.RegenerateDerivative)
		apiGroup.POST("/packs/:id/derivatives/stream", api.StreamDerivative)
		apiGroup.GET("/packs/:id/derivatives/versions", api.ListDerivativeVersions)
		apiGroup.POST("/packs/:id/derivatives/activate", api.ActivateDerivativeVersion)
		apiGroup.GET("/packs/:id/derivatives/export", api.ExportDerivatives)

		apiGroup.POST("/packs/:id/publish", api.PublishPack)
		apiGroup.GET("/packs/:id/publish-records", api.ListPublishRecords)

		apiGroup.GET("/settings", api.GetSettings)
		apiGroup.PUT("/settings", api.UpdateSettings)
		apiGroup.POST("/settings/test-ai", api.TestAIConnection)
	}

	return r
}
