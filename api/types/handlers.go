package types

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/killallgit/testimony-api/pkg/errors"
	"github.com/killallgit/testimony-api/pkg/logger"
)

// Handler utility functions to reduce duplication across handlers

// ParseUintParam extracts and parses a URL parameter as uint
// Returns the parsed value and sends error response if parsing fails
func ParseUintParam(c *gin.Context, paramName string) (uint, bool) {
	paramStr := c.Param(paramName)
	value, err := strconv.ParseUint(paramStr, 10, 32)
	if err != nil || value == 0 {
		SendError(c, apperrors.ValidationError(paramName, "must be a positive integer"))
		return 0, false
	}
	return uint(value), true
}

// SendError writes err as an ErrorResponse. *errors.AppError values keep
// their code, status and details; anything else is a 500.
func SendError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.ErrCodeInternal, "internal server error")
	}

	status := appErr.GetHTTPCode()
	if status >= http.StatusInternalServerError {
		logger.Default().WithRequest(c.Request).WithField("error", err.Error()).Error("request failed")
	}

	resp := ErrorResponse{
		Status:  StatusError,
		Message: appErr.Message,
		Error:   string(appErr.Code),
	}
	if len(appErr.Details) > 0 {
		resp.Details = appErr.Details
	}
	c.JSON(status, resp)
}

// SendBadRequest sends a standardized bad request response
func SendBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Status:  StatusError,
		Message: message,
		Error:   string(apperrors.ErrCodeValidation),
	})
}

// SendNotFound sends a standardized not found response
func SendNotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, ErrorResponse{
		Status:  StatusError,
		Message: message,
		Error:   string(apperrors.ErrCodeNotFound),
	})
}

// SendUnavailable is used when an optional dependency is not wired
func SendUnavailable(c *gin.Context, service string) {
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Status:  StatusError,
		Message: service + " is not available",
		Error:   string(apperrors.ErrCodeInternal),
	})
}
