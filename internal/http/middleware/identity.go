package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey    = "userID"
	userIDHeader = "X-User-ID"
)

// Identity resolves the caller id. Authentication happens upstream: a
// gateway or auth middleware either sets "userID" on the Gin context or
// forwards the numeric X-User-ID header. Invalid headers are ignored and the
// request continues anonymously; handlers decide whether that is allowed.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserID(c); !ok {
			if raw := strings.TrimSpace(c.GetHeader(userIDHeader)); raw != "" {
				if id, err := strconv.ParseUint(raw, 10, 64); err == nil && id > 0 {
					c.Set(userIDKey, uint(id))
				}
			}
		}
		c.Next()
	}
}

// UserID returns the caller id stored on the Gin context. Upstream code may
// store it as uint, uint64, int, or a decimal string.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	switch id := v.(type) {
	case uint:
		return id, id > 0
	case uint64:
		return uint(id), id > 0
	case int:
		return uint(id), id > 0
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
		return uint(n), err == nil && n > 0
	}
	return 0, false
}
