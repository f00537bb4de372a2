package middleware

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/solentra/account-service/internal/infra/security"
)

type encryptedRequest struct {
	EncRequest string `json:"encRequest"`
}

// DecryptRequest replaces an encrypted request body with its decrypted
// JSON payload so downstream handlers can bind it normally. The body
// must be {"encRequest": "<base64>"}. In development mode, or when no
// cipher is configured, bodies pass through untouched. Any decryption
// failure is passed to reject; malformed payloads never reach handlers.
func DecryptRequest(cipher *security.PayloadCipher, dev bool, reject func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if dev || cipher == nil {
			c.Next()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, 10<<20))
		if err != nil {
			reject(c)
			return
		}
		_ = c.Request.Body.Close()

		var sealed encryptedRequest
		if err := json.Unmarshal(body, &sealed); err != nil || sealed.EncRequest == "" {
			reject(c)
			return
		}

		var plain json.RawMessage
		if err := cipher.DecryptJSON(sealed.EncRequest, &plain); err != nil {
			reject(c)
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(plain))
		c.Request.ContentLength = int64(len(plain))
		c.Request.Header.Set("Content-Type", "application/json")

		c.Next()
	}
}
