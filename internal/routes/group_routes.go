package routes

import (
	"github.com/gin-gonic/gin"

	"tontine_manager/internal/controllers"
	"tontine_manager/internal/middleware"
)

func GroupRoutes(r *gin.Engine) {
	groups := r.Group("/groups")
	groups.Use(middleware.RequireAuth())
	{
		groups.POST("", controllers.CreateGroup)
		groups.GET("", controllers.ListGroups)
		groups.POST("/join", controllers.JoinByCode)
		groups.GET("/:id", controllers.GetGroup)
		groups.PATCH("/:id", controllers.UpdateGroup)
		groups.DELETE("/:id", controllers.DeactivateGroup)

		groups.GET("/:id/members", controllers.ListGroupMembers)
		groups.POST("/:id/members", controllers.AddMember)
		groups.PATCH("/:id/members/:member_id", controllers.UpdateGroupMember)
		groups.DELETE("/:id/members/:member_id", controllers.RemoveGroupMember)

		groups.POST("/:id/sessions", controllers.CreateSession)
		groups.POST("/:id/sessions/generate", controllers.GenerateGroupSessions)
		groups.GET("/:id/sessions", controllers.ListGroupSessions)

		groups.POST("/:id/payout-order", controllers.GeneratePayoutOrder)
		groups.PUT("/:id/payout-order", controllers.ReorderPayouts)
		groups.GET("/:id/schedule", controllers.GetPayoutSchedule)
	}
}
