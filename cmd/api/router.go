package main

import (
	"context"
	"net/http"
	"time"

	"luxestore-backend/internal/shared/middleware"
	"luxestore-backend/internal/shared/response"
	"luxestore-backend/pkg/container"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every HTTP route. Admin surfaces sit behind JWT auth plus
// the admin role gate (super admin passes every admin check).
func NewRouter(c *container.Container) *gin.Engine {
	if c.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(c.Config.CORS.Origins),
	)

	api := r.Group("/api")

	api.GET("/health", healthHandler(c))
	api.GET("/readiness", readinessHandler(c))
	api.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public catalog: live products only, staging rows are never served here.
	api.GET("/products", c.ProductHandler.ListLive)

	admin := api.Group("", middleware.AuthMiddleware(c.JWTManager), middleware.AdminMiddleware())
	{
		admin.POST("/imports/start", c.ImportHandler.Start)
		admin.GET("/imports", c.ImportHandler.List)
		admin.GET("/imports/:id/status", c.ImportHandler.Status)
		admin.POST("/imports/:id/cancel", c.ImportHandler.Cancel)

		admin.GET("/products/staging", c.ProductHandler.ListStaging)
		admin.GET("/products/staging/export", c.ProductHandler.ExportStaging)
		admin.PUT("/products/staging/:id", c.ProductHandler.UpdateStaging)
		admin.POST("/products/publish-staging", c.ProductHandler.Publish)

		admin.POST("/admin/import-tasks", c.TaskHandler.Create)
		admin.GET("/admin/import-tasks", c.TaskHandler.List)
		admin.GET("/admin/import-tasks/:id", c.TaskHandler.Get)
		admin.GET("/admin/import-tasks/:id/stream", c.ImportHandler.Stream)

		admin.GET("/admin/integrations", c.SettingsHandler.Get)
		admin.POST("/admin/integrations", c.SettingsHandler.Update)
	}

	return r
}

func healthHandler(c *container.Container) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		response.Success(ctx, http.StatusOK, gin.H{
			"status":  "ok",
			"version": c.Config.App.Version,
		})
	}
}

// readinessHandler checks the hard dependencies (Postgres, Redis) and
// reports supplier reachability without failing on it.
func readinessHandler(c *container.Container) gin.HandlerFunc {
	vendorClient := &http.Client{Timeout: 3 * time.Second}

	return func(ctx *gin.Context) {
		checks := gin.H{}
		healthy := true

		if err := c.DB.HealthCheck(ctx.Request.Context()); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}

		if err := c.Redis.HealthCheck(ctx.Request.Context()); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}

		checks["supplier"] = checkVendor(ctx.Request.Context(), vendorClient, c.Config.CJ.BaseURL)

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		ctx.JSON(status, gin.H{"success": healthy, "data": checks})
	}
}

func checkVendor(ctx context.Context, client *http.Client, baseURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
	if err != nil {
		return err.Error()
	}
	resp, err := client.Do(req)
	if err != nil {
		return "unreachable: " + err.Error()
	}
	resp.Body.Close()
	return "ok"
}
