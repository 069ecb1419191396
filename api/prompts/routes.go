package prompts

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/testimony-api/api/types"
	apperrors "github.com/killallgit/testimony-api/pkg/errors"
)

// RegisterRoutes registers prompt registry routes
func RegisterRoutes(router *gin.RouterGroup, deps *types.Dependencies) {
	router.GET("", List(deps))
}

// List returns every registered summary prompt version
// @Summary      List summary prompts
// @Tags         prompts
// @Produce      json
// @Success      200  {object}  types.PromptsResponse
// @Router       /api/v1/prompts [get]
func List(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Prompts == nil {
			types.SendUnavailable(c, "prompt registry")
			return
		}

		rows, err := deps.Prompts.List(c.Request.Context())
		if err != nil {
			types.SendError(c, apperrors.DatabaseError("list prompts", err))
			return
		}

		c.JSON(http.StatusOK, types.PromptsResponse{
			BaseResponse: types.BaseResponse{Status: types.StatusOK},
			Prompts:      rows,
			Count:        len(rows),
		})
	}
}
