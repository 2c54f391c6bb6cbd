package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatdesk/internal/shared/errors"
)

// APIResponse is the envelope returned by every admin endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

type ErrorInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{Success: true, Data: data, Message: message})
}

func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error: &ErrorInfo{
			Type:    errorTypeForStatus(statusCode),
			Message: message,
		},
	})
}

func errorTypeForStatus(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return string(errors.ErrorTypeBadRequest)
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return string(errors.ErrorTypeNotFound)
	case http.StatusConflict:
		return string(errors.ErrorTypeConflict)
	case http.StatusServiceUnavailable:
		return string(errors.ErrorTypeUnavailable)
	default:
		return string(errors.ErrorTypeInternal)
	}
}

// ErrorResponseWithError maps AppError to its status code. Other errors become a generic 500.
func ErrorResponseWithError(c *gin.Context, err error) {
	if appErr := errors.GetAppError(err); appErr != nil {
		c.JSON(appErr.Code, APIResponse{
			Success: false,
			Error: &ErrorInfo{
				Type:    string(appErr.Type),
				Message: appErr.Message,
				Details: appErr.Details,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, APIResponse{
		Success: false,
		Error: &ErrorInfo{
			Type:    string(errors.ErrorTypeInternal),
			Message: "Internal server error occurred",
		},
	})
}
