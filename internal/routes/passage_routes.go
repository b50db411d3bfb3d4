package routes

import (
	"github.com/gin-gonic/gin"

	"tontine_manager/internal/controllers"
	"tontine_manager/internal/middleware"
)

func PassageRoutes(r *gin.Engine) {
	passages := r.Group("/passages")
	passages.Use(middleware.RequireAuth())
	{
		passages.GET("/:id", controllers.GetPassage)
		passages.POST("/:id/start", controllers.StartPassage)
		passages.POST("/:id/payout", controllers.RecordPayout)
		passages.POST("/:id/confirm", controllers.ConfirmPassage)
		passages.POST("/:id/postpone", controllers.PostponePassage)
		passages.POST("/:id/cancel", controllers.CancelPassage)
	}
}
