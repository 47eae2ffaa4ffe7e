package middleware

import (
	"github.com/gin-gonic/gin"

	"artbooru/api/internal/ids"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags every request with the caller-supplied id, or mints one.
// The id is echoed in the response so saga failures can be correlated with
// the triggering submission.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = ids.New()
		}

		c.Set(requestIDHeader, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)

		c.Next()
	}
}
