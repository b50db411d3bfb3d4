package routes

import (
	"github.com/gin-gonic/gin"

	"tontine_manager/internal/controllers"
	"tontine_manager/internal/middleware"
)

func NotificationRoutes(r *gin.Engine) {
	notifications := r.Group("/notifications")
	notifications.Use(middleware.RequireAuth())
	{
		notifications.POST("/:id/read", controllers.MarkNotificationRead)
	}
}
