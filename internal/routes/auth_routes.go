package routes

import (
	"github.com/gin-gonic/gin"

	"tontine_manager/internal/controllers"
	"tontine_manager/internal/middleware"
)

func AuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/signup", controllers.SignupUser)
		auth.POST("/login", controllers.LoginUser)
	}

	me := r.Group("/me")
	me.Use(middleware.RequireAuth())
	{
		me.GET("", controllers.GetMe)
		me.GET("/payments", controllers.ListMyPayments)
		me.GET("/groups", controllers.ListMyGroups)
		me.GET("/notifications", controllers.ListMyNotifications)
	}
}
