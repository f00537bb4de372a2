package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	traceIDHeader = "X-Trace-ID"
	traceIDKey    = "trace_id"
)

// EnrichContext propagates the caller's trace identifier, minting one when
// the header is absent, and echoes it on the response.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(traceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(traceIDKey, traceID)
		c.Header(traceIDHeader, traceID)

		c.Next()
	}
}

// GetTraceID returns the trace identifier for the request, or "" before
// EnrichContext has run.
func GetTraceID(c *gin.Context) string {
	return c.GetString(traceIDKey)
}
