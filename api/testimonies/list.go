package testimonies

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/testimony-api/api/types"
	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/internal/services/testimonies"
	apperrors "github.com/killallgit/testimony-api/pkg/errors"
)

// List returns testimonies, newest recording first
// @Summary      List testimonies
// @Tags         testimonies
// @Produce      json
// @Param        origin  query  string  false  "Filter by origin"
// @Param        status  query  string  false  "Filter by transcript status"
// @Param        tag     query  string  false  "Filter by tag"
// @Param        limit   query  int     false  "Page size (max 100)"
// @Param        offset  query  int     false  "Offset"
// @Success      200  {object}  types.TestimoniesResponse
// @Failure      400  {object}  types.ErrorResponse
// @Router       /api/v1/testimonies [get]
func List(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q types.ListTestimoniesQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			types.SendBadRequest(c, "Invalid query parameters")
			return
		}
		if q.Limit < 0 || q.Offset < 0 {
			types.SendBadRequest(c, "limit and offset must not be negative")
			return
		}

		filter := testimonies.ListFilter{
			Origin: q.Origin,
			Tag:    q.Tag,
			Limit:  q.Limit,
			Offset: q.Offset,
		}
		if q.Status != "" {
			status, ok := models.ParseTranscriptStatus(q.Status)
			if !ok {
				types.SendError(c, apperrors.ValidationError("status", "unknown transcript status"))
				return
			}
			filter.Status = status
		}

		rows, total, err := deps.Testimonies.List(c.Request.Context(), filter)
		if err != nil {
			types.SendError(c, apperrors.DatabaseError("list testimonies", err))
			return
		}
		if rows == nil {
			rows = []models.Testimony{}
		}

		limit := filter.Limit
		if limit <= 0 {
			limit = testimonies.DefaultPageSize
		}
		c.JSON(http.StatusOK, types.TestimoniesResponse{
			BaseResponse: types.BaseResponse{Status: types.StatusOK},
			Testimonies:  rows,
			Count:        len(rows),
			Total:        total,
			Limit:        min(limit, testimonies.MaxPageSize),
			Offset:       filter.Offset,
		})
	}
}
