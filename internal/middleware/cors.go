package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsAllowedHeaders = "Content-Type, Authorization, X-Requested-With"
	corsMaxAge         = "86400" // 24h preflight cache

	// corsDeniedOrigin is echoed for origins outside the allow-list. The
	// literal "null" matches no real origin, so browsers refuse the response.
	corsDeniedOrigin = "null"

	localhostPrefix = "http://localhost"
)

// CORSPolicy computes per-request CORS headers from the configured allow-list.
// In development mode any localhost origin is additionally permitted.
type CORSPolicy struct {
	AllowedOrigins []string
	Development    bool
}

// AllowOrigin returns the value for Access-Control-Allow-Origin given a
// request's Origin header: the origin itself when permitted, the denial
// sentinel otherwise.
func (p CORSPolicy) AllowOrigin(origin string) string {
	if origin == "" {
		return corsDeniedOrigin
	}

	for _, allowed := range p.AllowedOrigins {
		if strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return origin
		}
	}

	if p.Development && strings.HasPrefix(origin, localhostPrefix) {
		return origin
	}

	return corsDeniedOrigin
}

// CORS attaches the policy's headers to every response, success and failure
// alike, and answers OPTIONS preflights with 200 and no body. It runs before
// the handlers so every exit path carries identical headers.
func CORS(policy CORSPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		c.Header("Access-Control-Allow-Origin", policy.AllowOrigin(origin))
		c.Header("Access-Control-Allow-Methods", corsAllowedMethods)
		c.Header("Access-Control-Allow-Headers", corsAllowedHeaders)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", corsMaxAge)
		c.Header("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}
