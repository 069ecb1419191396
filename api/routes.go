package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/killallgit/testimony-api/api/health"
	"github.com/killallgit/testimony-api/api/jobs"
	"github.com/killallgit/testimony-api/api/prompts"
	"github.com/killallgit/testimony-api/api/search"
	"github.com/killallgit/testimony-api/api/testimonies"
	"github.com/killallgit/testimony-api/api/types"
	"github.com/killallgit/testimony-api/api/version"
	"github.com/killallgit/testimony-api/api/workers"
	_ "github.com/killallgit/testimony-api/docs/swagger"
	"github.com/killallgit/testimony-api/pkg/config"
	apperrors "github.com/killallgit/testimony-api/pkg/errors"
)

// multipart framing on top of the audio limit
const uploadOverhead = 1 << 20

// RegisterRoutes registers all API routes
func RegisterRoutes(engine *gin.Engine, deps *types.Dependencies, limiters *RateLimiters, rl config.RateLimitConfig) error {
	if deps == nil {
		return apperrors.ConfigError("dependencies", "must not be nil")
	}

	// Register public routes (no rate limiting)
	health.RegisterRoutes(engine, deps)
	version.RegisterRoutes(engine, deps)

	// Register Swagger documentation route
	engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/docs/index.html")
	})
	docsGroup := engine.Group("/docs")
	docsGroup.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Setup 404 handler
	engine.NoRoute(NotFoundHandler())

	limit := func(scope string) []gin.HandlerFunc {
		if !rl.Enabled || limiters == nil {
			return nil
		}
		rps := rl.Endpoints[scope]
		if rps <= 0 {
			rps = rl.Endpoints["default"]
		}
		if rps <= 0 {
			return nil
		}
		return []gin.HandlerFunc{limiters.Middleware(scope, rps, rps*2)}
	}

	v1 := engine.Group("/api/v1")
	v1.Use(limit("default")...)

	if deps.Testimonies != nil {
		uploadMiddleware := limit("upload")
		if deps.Ingestion != nil && deps.Ingestion.MaxUploadBytes() > 0 {
			uploadMiddleware = append(uploadMiddleware, RequestSizeLimitWithSize(deps.Ingestion.MaxUploadBytes()+uploadOverhead))
		}
		testimonies.RegisterRoutes(v1.Group("/testimonies"), deps, uploadMiddleware...)
	}

	if deps.JobService != nil {
		jobs.RegisterRoutes(v1.Group("/jobs"), deps)
		workers.RegisterRoutes(v1.Group("/workers"), deps)
	}

	searchGroup := v1.Group("/search")
	searchGroup.Use(limit("search")...)
	search.RegisterRoutes(searchGroup, deps)

	prompts.RegisterRoutes(v1.Group("/prompts"), deps)

	return nil
}

// NotFoundHandler handles 404 errors
func NotFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Status:  types.StatusError,
			Message: "The requested endpoint was not found",
			Error:   string(apperrors.ErrCodeNotFound),
			Details: gin.H{"path": c.Request.URL.Path},
		})
	}
}
