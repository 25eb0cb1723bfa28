package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/voiceclone/pkg/errors"
	"github.com/charlesng35/voiceclone/pkg/sanitize"
)

// Response defines the base API payload. Every response, success or failure,
// carries Success; failures additionally carry a short error code and a
// sanitized human-readable message.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Details []string    `json:"details,omitempty"`
}

// Success writes a JSON success response.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
	})
}

// SuccessList writes a JSON success response for collection payloads,
// including the item count.
func SuccessList(c *gin.Context, statusCode int, data interface{}, count int) {
	c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
		Count:   &count,
	})
}

// Error writes a JSON error response derived from an AppError. The outgoing
// message always passes through the error sanitizer so filesystem paths and
// token-shaped strings never reach a client.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	details := make([]string, 0, len(appErr.Details))
	for _, detail := range appErr.Details {
		details = append(details, sanitize.Message(detail))
	}
	if len(details) == 0 {
		details = nil
	}

	c.JSON(status, Response{
		Success: false,
		Error:   appErr.Code,
		Message: sanitize.Message(appErr.Message),
		Details: details,
	})
}
