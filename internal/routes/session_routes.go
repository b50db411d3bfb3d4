package routes

import (
	"github.com/gin-gonic/gin"

	"tontine_manager/internal/controllers"
	"tontine_manager/internal/middleware"
)

func SessionRoutes(r *gin.Engine) {
	sessions := r.Group("/sessions")
	sessions.Use(middleware.RequireAuth())
	{
		sessions.GET("/:id", controllers.GetSession)
		sessions.GET("/:id/stats", controllers.GetSessionStats)
		sessions.POST("/:id/open", controllers.OpenSession)
		sessions.POST("/:id/close", controllers.CloseSession)
		sessions.POST("/:id/cancel", controllers.CancelSession)
		sessions.POST("/:id/remind", controllers.RemindSessionContributors)

		sessions.GET("/:id/payments", controllers.ListSessionPayments)
		sessions.POST("/:id/payments", controllers.SubmitManualPayment)
		sessions.POST("/:id/payments/mobile", controllers.InitiateMobilePayment)
	}
}
