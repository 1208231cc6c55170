package router

import (
	"github.com/gin-gonic/gin"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
	"github.com/qinqiang2000/RedBlueMatcher/internal/handler"
	"github.com/qinqiang2000/RedBlueMatcher/internal/middleware"
	"github.com/qinqiang2000/RedBlueMatcher/internal/service"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	authSvc service.AuthService,
	authH *handler.AuthHandler,
	batchH *handler.BatchHandler,
	healthH *handler.HealthHandler,
	allowedOrigins []string,
) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(allowedOrigins))

	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/login", authH.Login)
	auth.POST("/refresh", authH.RefreshToken)

	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(authSvc))
	protected.Use(middleware.TenantGuard())

	tenants := protected.Group("/tenants/:tenant_id")
	tenants.POST("/batch-matches", middleware.RequireRole(domain.RoleAdmin, domain.RoleManager), batchH.Create)
	tenants.GET("/batch-matches/:run_id", batchH.Status)

	return r
}
