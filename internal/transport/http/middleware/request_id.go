package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	applogger "github.com/solentra/account-service/internal/infra/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID stores a per-request correlation identifier on the request
// context and echoes it in the response header. Callers may supply their
// own via X-Request-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Writer.Header().Set(requestIDHeader, id)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), applogger.RequestIDKey{}, id),
		)

		c.Next()
	}
}
