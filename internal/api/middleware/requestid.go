package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/shellpane/shellpane/internal/shared/id"
)

// RequestIDHeader carries the request id assigned to each API call.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request a fresh id, exposed on the response header
// and in the gin context for log correlation.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := id.NewRequestID().String()
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}
