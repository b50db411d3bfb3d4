package routes

import (
	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
)

// SetupRouter registers the global middleware and mounts every route group.
// Middleware comes first: gin snapshots each route's handler chain at
// registration time, so anything added after mounting never runs for these
// routes. Serving is the caller's job.
func SetupRouter() *gin.Engine {
	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Request logging middleware
	r.Use(ginlog.SetLogger())

	AuthRoutes(r)
	GroupRoutes(r)
	SessionRoutes(r)
	PaymentRoutes(r)
	PassageRoutes(r)
	NotificationRoutes(r)

	return r
}
