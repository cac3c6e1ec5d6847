package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/slotwatch/models"
)

// ctxKeyIdentity is where Auth stores the caller's key for RateLimit.
const ctxKeyIdentity = "api_key"

// Auth returns API-key authentication middleware.
//
// Accepts either header style:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// With no configured keys every request is let through.
func Auth(apiKeys []string) gin.HandlerFunc {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := apiKeyFrom(c)
		if key == "" {
			unauthorized(c, "missing API key: provide X-API-Key header or Authorization: Bearer <key>")
			return
		}
		if !knownKey(keys, key) {
			unauthorized(c, "invalid API key")
			return
		}
		c.Set(ctxKeyIdentity, key)
		c.Next()
	}
}

func knownKey(keys [][]byte, key string) bool {
	candidate := []byte(key)
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, candidate)
	}
	return found == 1
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error: &models.ErrorDetail{Code: models.ErrCodeUnauthorized, Message: msg},
	})
}

// apiKeyFrom tries X-API-Key first, then Authorization: Bearer.
func apiKeyFrom(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
