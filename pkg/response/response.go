package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// APIResponse is the uniform envelope returned by every endpoint.
// Success responses carry Data; failures carry Errors and Success=false.
type APIResponse[T any] struct {
	StatusCode int       `json:"statusCode"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	Data       T         `json:"data,omitempty"`
	Errors     any       `json:"errors,omitempty"`
}

// Success writes a success envelope with the given status code.
func Success[T any](c *gin.Context, status int, data T, message string) {
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, APIResponse[T]{
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
		RequestID:  c.GetString("request_id"),
		Success:    true,
		Message:    message,
		Data:       data,
	})
}

// Error writes an error envelope with the given status code. errs is optional
// detail (field map, message list) for clients that want more than Message.
func Error(c *gin.Context, status int, message string, errs any) {
	if status == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, APIResponse[any]{
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
		RequestID:  c.GetString("request_id"),
		Success:    false,
		Message:    message,
		Errors:     errs,
	})
}

// AbortError writes an error envelope and aborts the handler chain.
func AbortError(c *gin.Context, status int, message string, errs any) {
	c.AbortWithStatusJSON(status, APIResponse[any]{
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
		RequestID:  c.GetString("request_id"),
		Success:    false,
		Message:    message,
		Errors:     errs,
	})
}
