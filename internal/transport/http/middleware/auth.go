package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/solentra/account-service/internal/core/domain"
	"github.com/solentra/account-service/internal/infra/security"
)

const sessionUserKey = "session_user"

// RequireAuth validates the Bearer session token and stores the
// authenticated user on the Gin context. Requests without a valid
// token are passed to reject; expired reports whether the token was
// valid but past its lifetime.
func RequireAuth(tokens *security.TokenService, reject func(c *gin.Context, expired bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			reject(c, false)
			return
		}

		user, err := tokens.VerifySessionToken(raw)
		if err != nil {
			reject(c, errors.Is(err, security.ErrTokenExpired))
			return
		}

		c.Set(sessionUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the session user stored by RequireAuth.
func CurrentUser(c *gin.Context) (*domain.SessionUser, bool) {
	value, ok := c.Get(sessionUserKey)
	if !ok {
		return nil, false
	}

	user, ok := value.(*domain.SessionUser)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
