package middleware

import (
	"net/http"
	"strings"

	"github.com/cribnosh/verify-api/internal/model"
	"github.com/cribnosh/verify-api/pkg/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ContextUsernameKey = "username"
	ContextTokenKey    = "token"
)

// AuthMiddleware validates admin JWT tokens and injects the claims into context
func AuthMiddleware(jwtManager *auth.JWTManager, blacklist auth.Blacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abortUnauthorized(c, "Invalid authorization format. Use: Bearer <token>")
			return
		}

		tokenString := parts[1]

		revoked, err := blacklist.IsRevoked(c.Request.Context(), tokenString)
		if err != nil {
			// fail closed
			zap.L().Error("token blacklist unavailable", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{Error: "internal", Message: "Auth server error"})
			return
		}
		if revoked {
			abortUnauthorized(c, "Token has been revoked")
			return
		}

		claims, err := jwtManager.ValidateToken(tokenString)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(ContextUsernameKey, claims.Username)
		c.Set(ContextTokenKey, tokenString)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized", Message: msg})
}
