package jobs

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/testimony-api/api/types"
	"github.com/killallgit/testimony-api/internal/services/jobs"
	apperrors "github.com/killallgit/testimony-api/pkg/errors"
)

// Get reports the state of a transcription job
// @Summary      Poll a job
// @Description  Returns PENDING, STARTED, RETRY, SUCCESS or FAILURE for the job created by an upload
// @Tags         jobs
// @Produce      json
// @Param        id   path      int  true  "Job ID"
// @Success      200  {object}  types.JobStatusResponse
// @Failure      404  {object}  types.ErrorResponse
// @Router       /api/v1/jobs/{id} [get]
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := types.ParseUintParam(c, "id")
		if !ok {
			return
		}

		job, err := deps.JobService.GetJob(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, jobs.ErrJobNotFound) {
				types.SendError(c, apperrors.NotFound("job", id))
				return
			}
			types.SendError(c, apperrors.DatabaseError("get job", err))
			return
		}

		c.JSON(http.StatusOK, types.JobStatusResponse{
			BaseResponse: types.BaseResponse{Status: types.StatusOK},
			JobID:        job.ID,
			State:        job.PollState(),
			Type:         job.Type,
			RetryCount:   job.RetryCount,
			Attempts:     job.Attempts,
			RunAfter:     job.RunAfter,
			CompletedAt:  job.CompletedAt,
			Error:        job.Error,
			ErrorType:    job.ErrorType,
			Result:       job.Result,
		})
	}
}
