package testimonies

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/testimony-api/api/types"
	"github.com/killallgit/testimony-api/internal/services/testimonies"
	apperrors "github.com/killallgit/testimony-api/pkg/errors"
)

// Get returns one testimony
// @Summary      Get a testimony
// @Tags         testimonies
// @Produce      json
// @Param        id   path      int  true  "Testimony ID"
// @Success      200  {object}  types.TestimonyResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Router       /api/v1/testimonies/{id} [get]
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := types.ParseUintParam(c, "id")
		if !ok {
			return
		}

		t, err := deps.Testimonies.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, testimonies.ErrTestimonyNotFound) {
				types.SendError(c, apperrors.NotFound("testimony", id))
				return
			}
			types.SendError(c, apperrors.DatabaseError("get testimony", err))
			return
		}

		c.JSON(http.StatusOK, types.TestimonyResponse{
			BaseResponse: types.BaseResponse{Status: types.StatusOK},
			Testimony:    t,
		})
	}
}
