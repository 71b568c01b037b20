// Package controllers contains the gin HTTP handlers. Controllers
// parse requests, call services, and translate AppErrors into JSON
// responses.
package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"quantpulse/apperrors"
	"quantpulse/logger"
)

// respondError writes a JSON error response for an AppError, falling
// back to a 500 for unknown error types
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.StatusCode >= http.StatusInternalServerError {
			logger.Get().Errorw("request failed",
				"path", c.FullPath(), "code", appErr.Code, "error", appErr.Internal)
		}
		c.JSON(appErr.StatusCode, gin.H{
			"error": appErr.Message,
			"code":  appErr.Code,
		})
		return
	}

	logger.Get().Errorw("request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": apperrors.ErrInternalServer.Message,
		"code":  apperrors.ErrInternalServer.Code,
	})
}

// respondInvalid writes a 400 for request binding failures
func respondInvalid(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": "Invalid request: " + err.Error(),
		"code":  apperrors.ErrInvalidInput.Code,
	})
}
