package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// Gin freezes a route's handler chain when the route is registered, so the
// global middleware has to be in place before the route groups are mounted.
// This drives a mounted route into a panic (no database is configured here,
// so the signup handler hits a nil store) and expects recovery to answer
// with a 500 instead of crashing the server.
func TestRecoveryCoversMountedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := SetupRouter()

	body := `{"first_name":"Awa","last_name":"Traore","email":"awa.traore@example.com","password":"longenough1","phone":"+2250700000001"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("panicking handler answered %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
