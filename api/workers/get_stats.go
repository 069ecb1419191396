package workers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/testimony-api/api/types"
	apperrors "github.com/killallgit/testimony-api/pkg/errors"
)

// GetStats returns worker counters and queue depth by status. The pool
// section is omitted when this process runs no embedded workers.
// @Summary      Worker statistics
// @Tags         workers
// @Produce      json
// @Success      200  {object}  types.WorkerStatsResponse
// @Router       /api/v1/workers/stats [get]
func GetStats(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		queue, err := deps.JobService.Stats(c.Request.Context())
		if err != nil {
			types.SendError(c, apperrors.DatabaseError("job stats", err))
			return
		}

		resp := types.WorkerStatsResponse{
			BaseResponse: types.BaseResponse{Status: types.StatusOK},
			Queue:        queue,
		}
		if deps.WorkerPool != nil {
			stats := deps.WorkerPool.Stats()
			resp.Pool = &stats
		}

		c.JSON(http.StatusOK, resp)
	}
}
