package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// ContextUserID gin 上下文中的用户ID
	ContextUserID = "user_id"
	// ContextIsAdmin marks callers holding the admin role.
	ContextIsAdmin   = "is_admin"
	ContextRequestID = "request_id"
)

// RequestContextMiddleware 注入 user_id 和 request_id，便于下游和日志使用。
// With JWT disabled the caller identity comes from X-User-ID.
func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set(ContextUserID, userID)
		}
		c.Set(ContextRequestID, reqID)
		c.Writer.Header().Set("X-Request-ID", reqID)
		c.Next()
	}
}

// UserID returns the caller identity set by either middleware.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// IsAdmin reports whether the caller carries the admin role.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(ContextIsAdmin)
}
