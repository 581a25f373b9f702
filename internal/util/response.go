package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the data payload of a success envelope.
type Response map[string]interface{}

// Business error codes.
const (
	CodeOK           = 0
	CodeInvalidParam = 40001
	CodeAuth         = 40101
	CodeForbidden    = 40301
	CodeNotFound     = 40401
	CodeConflict     = 40901
	CodeRateLimited  = 42901
	CodeServerErr    = 50001
	CodeBadGateway   = 50201
	CodeUnavailable  = 50301
)

// Success writes the standard success envelope.
func Success(c *gin.Context, data Response) {
	c.JSON(http.StatusOK, gin.H{
		"code": CodeOK,
		"data": data,
	})
}

// Error writes the standard error envelope.
func Error(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
	})
}

// ErrorReason is Error plus a machine readable reason, e.g. "invalid_amount".
// "error" repeats the message for clients of the payment endpoints.
func ErrorReason(c *gin.Context, httpStatus int, code int, reason, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"error":   msg,
		"reason":  reason,
	})
}
