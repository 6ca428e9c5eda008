package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIResponse is the uniform success envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// RespondJSON sends a success envelope with the given status.
func RespondJSON(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, APIResponse{Success: true, Message: message, Data: data})
}

// RespondOK sends a 200 success envelope.
func RespondOK(c *gin.Context, message string, data interface{}) {
	RespondJSON(c, http.StatusOK, message, data)
}

// RespondCreated sends a 201 success envelope.
func RespondCreated(c *gin.Context, message string, data interface{}) {
	RespondJSON(c, http.StatusCreated, message, data)
}

// RespondError renders any error as the uniform failure envelope
// {success:false, message} with the error's status code.
func RespondError(c *gin.Context, err error) {
	apiErr := AsAPIError(err)
	c.JSON(apiErr.Status, gin.H{
		"success": false,
		"message": apiErr.Message,
	})
}

// AbortWithError renders the error and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	RespondError(c, err)
	c.Abort()
}
