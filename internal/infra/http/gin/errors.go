package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentbook/internal/domain/shared/fault"
	"rentbook/internal/infra/obs"
)

func statusFor(err error) int {
	switch fault.KindOf(err) {
	case fault.ErrNotFound:
		return http.StatusNotFound
	case fault.ErrForbidden:
		return http.StatusForbidden
	case fault.ErrInvalidState, fault.ErrConflict:
		return http.StatusConflict
	case fault.ErrValidation:
		return http.StatusUnprocessableEntity
	case fault.ErrTransient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	code := fault.Name(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		code = "internal"
		msg = "internal error"
	}
	log := obs.LoggerFrom(c.Request.Context(), logger)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "route", c.FullPath(), "error", err)
	} else {
		log.Debug("request rejected", "status", status, "code", code, "error", err)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg, "code": code})
}

var errMalformedDate = errors.New("dates must use YYYY-MM-DD")

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
}
