package testimonies

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/testimony-api/api/types"
	"github.com/killallgit/testimony-api/internal/services/ingestion"
	apperrors "github.com/killallgit/testimony-api/pkg/errors"
)

// Post handles testimony uploads
// @Summary      Upload a testimony
// @Description  Upload an audio recording. A new recording is stored and queued for transcription (201); a recording already known for the origin returns the existing testimony (200).
// @Tags         testimonies
// @Accept       multipart/form-data
// @Produce      json
// @Param        file         formData  file    true   "Audio file"
// @Param        origin       formData  string  false  "Church origin"
// @Param        tags         formData  string  false  "Comma separated tags"
// @Param        recorded_at  formData  string  false  "Recording date (YYYY-MM-DD)"
// @Success      201 {object} types.UploadResponse "Testimony accepted"
// @Success      200 {object} types.UploadResponse "Duplicate of an existing testimony"
// @Failure      400 {object} types.ErrorResponse "Invalid origin or undecodable audio"
// @Failure      413 {object} types.ErrorResponse "Upload too large"
// @Failure      500 {object} types.ErrorResponse "Internal server error"
// @Router       /api/v1/testimonies [post]
func Post(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Ingestion == nil {
			types.SendUnavailable(c, "ingestion")
			return
		}
		limit := deps.Ingestion.MaxUploadBytes()

		fh, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				types.SendError(c, apperrors.PayloadTooLarge(c.Request.ContentLength, limit))
				return
			}
			types.SendError(c, apperrors.MissingFieldError("file"))
			return
		}
		if limit > 0 && fh.Size > limit {
			types.SendError(c, apperrors.PayloadTooLarge(fh.Size, limit))
			return
		}

		f, err := fh.Open()
		if err != nil {
			types.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "reading upload"))
			return
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			types.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "reading upload"))
			return
		}

		res, err := deps.Ingestion.Ingest(c.Request.Context(), ingestion.Request{
			Audio:       data,
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Origin:      c.PostForm("origin"),
			Tags:        c.PostForm("tags"),
			RecordedAt:  c.PostForm("recorded_at"),
			CreatedBy:   "api",
		})
		if err != nil {
			types.SendError(c, err)
			return
		}

		status := http.StatusCreated
		message := "Testimony queued for transcription"
		if res.Duplicate {
			status = http.StatusOK
			message = "Testimony already uploaded"
		}

		c.JSON(status, types.UploadResponse{
			BaseResponse: types.BaseResponse{Status: types.StatusOK, Message: message},
			Testimony:    res.Testimony,
			JobID:        res.JobID,
			Duplicate:    res.Duplicate,
		})
	}
}
