package response

import (
	"net/http"

	appErrors "course-enrollment/pkg/errors"
	"course-enrollment/pkg/validator"

	"github.com/gin-gonic/gin"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// ErrorDetail is the errors payload of a failed request.
type ErrorDetail struct {
	Code string `json:"code"`
}

// Success writes a successful envelope.
func Success(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error converts err to its typed form and writes it with the matching status.
// Server errors are attached to the gin context so the access log records the cause.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(appErr.Status, APIResponse{
		Success: false,
		Message: appErr.Message,
		Errors:  ErrorDetail{Code: appErr.Code},
	})
}

// BadRequest reports a body that could not be decoded.
func BadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, APIResponse{
		Success: false,
		Message: "Invalid request format",
		Errors:  err.Error(),
	})
}

// ValidationFailed reports field errors from the validator.
func ValidationFailed(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, APIResponse{
		Success: false,
		Message: "Validation failed",
		Errors:  validator.FormatValidationError(err),
	})
}
