package apierrors

import (
	"net/http"

	"voice-gateway/internal/observability"

	"github.com/gin-gonic/gin"
)

var logger = observability.NewLogger()

// ErrorResponse is the JSON structure returned to API clients
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respond writes the error response and logs correlation info
func respond(c *gin.Context, statusCode int, code, message string) {
	ctx := c.Request.Context()
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "status_code", Value: statusCode},
		observability.Field{Key: "error_code", Value: code},
		observability.Field{Key: "error_message", Value: message},
	)
	logger.Info(ctx, "API error response")

	c.JSON(statusCode, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, code, message string) {
	respond(c, http.StatusBadRequest, code, message)
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	respond(c, http.StatusNotFound, "NOT_FOUND", message)
}

// InternalError sends a 500 response and logs the internal error
func InternalError(c *gin.Context, err error) {
	logger.Error(c.Request.Context(), "internal error", err)
	respond(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong. Please try again.")
}

// ServiceUnavailable sends a 503 response and logs the internal error
func ServiceUnavailable(c *gin.Context, err error) {
	logger.Error(c.Request.Context(), "service unavailable", err)
	respond(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service is temporarily unavailable.")
}
