package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// APIKeyMiddleware validates the static API key on protected routes.
type APIKeyMiddleware struct {
	apiKey string
}

// NewAPIKeyMiddleware creates a new API key middleware. An empty key disables
// authentication, which is only acceptable for local development.
func NewAPIKeyMiddleware(apiKey string) *APIKeyMiddleware {
	if apiKey == "" {
		logrus.Warn("API_KEY not set, API authentication disabled")
	}
	return &APIKeyMiddleware{apiKey: apiKey}
}

// APIKeyAuthMiddleware validates the API key from the Authorization header.
func (m *APIKeyMiddleware) APIKeyAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.apiKey == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Authorization header is required",
			})
			c.Abort()
			return
		}

		key := strings.TrimPrefix(authHeader, "ApiKey ")
		key = strings.TrimPrefix(key, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Invalid API key",
			})
			c.Abort()
			return
		}

		c.Set("auth_type", "api_key")
		c.Next()
	}
}
