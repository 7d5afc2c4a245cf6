package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"rentbook/internal/infra/obs"
)

// userHeader carries the caller id. Authentication happens at the gateway;
// this service trusts the header.
const userHeader = "X-User-ID"

const callerKey = "rentbook.caller"

type principal struct {
	ID string
}

// Identity records the caller, if any, and adds it to the request logger.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(userHeader))
		if id != "" {
			c.Set(callerKey, principal{ID: id})
			ctx := c.Request.Context()
			c.Request = c.Request.WithContext(obs.WithLogger(ctx, obs.LoggerFrom(ctx, nil).With("user_id", id)))
		}
		c.Next()
	}
}

// requireUser writes a 401 and reports false for anonymous requests.
func requireUser(c *gin.Context) (principal, bool) {
	if v, ok := c.Get(callerKey); ok {
		if p, ok := v.(principal); ok {
			return p, true
		}
	}
	c.JSON(http.StatusUnauthorized, gin.H{"error": userHeader + " header required", "code": "unauthenticated"})
	return principal{}, false
}
