package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tontine_manager/internal/middleware"
	"tontine_manager/internal/notify"
	"tontine_manager/internal/tontine"
)

// Engines wired once at startup, mirroring the global DB handle in config.
var (
	registry   *tontine.Registry
	payouts    *tontine.PayoutEngine
	sessions   *tontine.SessionEngine
	payments   *tontine.PaymentEngine
	dispatcher *notify.Dispatcher
)

// Setup injects the engines the handlers call into.
func Setup(r *tontine.Registry, p *tontine.PayoutEngine, s *tontine.SessionEngine, pay *tontine.PaymentEngine, d *notify.Dispatcher) {
	registry = r
	payouts = p
	sessions = s
	payments = pay
	dispatcher = d
}

// currentActor pulls the acting identity from the JWT claims; aborts with 401
// when RequireAuth did not run.
func currentActor(c *gin.Context) (tontine.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authentication"})
	}
	return actor, ok
}

// pathID parses a numeric path parameter; aborts with 400 on garbage.
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// respondError maps engine errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	c.JSON(tontine.HTTPStatus(err), gin.H{"error": err.Error()})
}
