package middleware

import (
	"net/http"
	"strings"

	"schoolfees/utils"

	"github.com/gin-gonic/gin"
)

// IdentityKey is the gin context key holding the caller's auth subject.
const IdentityKey = "identity"

// StaffAuthMiddleware requires a valid Bearer token and stores its subject under
// IdentityKey. Whether the subject is staff of the target school is decided later,
// once the school is known.
func StaffAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{Error: "Missing or invalid Authorization header"})
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		subject, err := utils.ExtractIDFromToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{Error: "Invalid token"})
			return
		}

		c.Set(IdentityKey, subject)
		c.Next()
	}
}
