package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"edureg/internal/app"
	"edureg/internal/attendance"
	"edureg/internal/extract"
	"edureg/internal/form"
	"edureg/internal/logsvc"
	"edureg/internal/store"
	"edureg/internal/student"
	"edureg/internal/validate"
)

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, logger logsvc.Logger, err error) {
	if fields, ok := validate.Fields(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}

	var werr *store.WriteError
	switch {
	case errors.Is(err, student.ErrNotFound), errors.Is(err, app.ErrNoPendingDeletion):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrNotScheduled), errors.Is(err, form.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, extract.ErrEmptyInput),
		errors.Is(err, student.ErrUnknownWeekday),
		errors.Is(err, app.ErrInvalidTheme),
		errors.Is(err, app.ErrUnknownFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, extract.ErrFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": extract.Message, "retryable": true})
	case errors.Is(err, extract.ErrDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.As(err, &werr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable, change kept locally", "key": werr.Key})
	default:
		logger.Error("request failed", err, map[string]interface{}{"path": c.FullPath()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
