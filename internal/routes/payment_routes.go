package routes

import (
	"github.com/gin-gonic/gin"

	"tontine_manager/internal/controllers"
	"tontine_manager/internal/middleware"
)

func PaymentRoutes(r *gin.Engine) {
	payments := r.Group("/payments")
	payments.Use(middleware.RequireAuth())
	{
		payments.GET("/:id", controllers.GetPayment)
		payments.POST("/:id/validate", controllers.ValidatePayment)
		payments.POST("/:id/cancel", controllers.CancelPayment)
		payments.POST("/:id/refund", controllers.RefundPayment)
	}

	// Operator callbacks are unauthenticated; the payment reference is the
	// correlation key and unknown references are dropped.
	callbacks := r.Group("/callbacks")
	{
		callbacks.POST("/orange", controllers.OrangeMoneyCallback)
		callbacks.POST("/mtn", controllers.MTNMoMoCallback)
		callbacks.POST("/wave", controllers.WaveCallback)
		callbacks.POST("/moov", controllers.MoovMoneyCallback)
	}
}
