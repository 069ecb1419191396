package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/testimony-api/api/types"
)

// Get handles health check requests
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse
// @Failure      503  {object}  types.HealthResponse
// @Router       /health [get]
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		db := getDatabaseStatus(deps)

		status := http.StatusOK
		overall := "healthy"
		if db["status"] == "unhealthy" {
			status = http.StatusServiceUnavailable
			overall = "unhealthy"
		}

		c.JSON(status, types.HealthResponse{
			Status:    overall,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Database:  db,
		})
	}
}

// getDatabaseStatus returns the database connection status
func getDatabaseStatus(deps *types.Dependencies) map[string]string {
	if deps == nil || deps.DB == nil || deps.DB.DB == nil {
		return map[string]string{"status": "not configured"}
	}

	if err := deps.DB.HealthCheck(); err != nil {
		return map[string]string{"status": "unhealthy", "error": err.Error()}
	}

	return map[string]string{"status": "connected"}
}
