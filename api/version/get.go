package version

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/testimony-api/api/types"
)

// Get handles version requests
// @Summary      API version
// @Tags         version
// @Produce      json
// @Success      200  {object}  types.VersionResponse
// @Router       / [get]
func Get(deps *types.Dependencies) gin.HandlerFunc {
	version := "dev"
	if deps != nil && deps.Version != "" {
		version = deps.Version
	}

	return func(c *gin.Context) {
		c.JSON(http.StatusOK, types.VersionResponse{
			Name:        "Testimony API",
			Version:     version,
			Description: "Transcription, summaries and search for recorded church testimonies",
			Status:      "running",
		})
	}
}
