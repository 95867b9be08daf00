package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/namdinh240505-spec/qlnx-backend/pkg/jwt"
)

// UserContext holds the authenticated operator's identity
type UserContext struct {
	UserID uuid.UUID
	Roles  []string
}

const userContextKey = "user_context"

// AuthMiddleware validates the Bearer token and stores the operator's
// identity on the request context
func AuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
				"code":  "MISSING_AUTH_HEADER",
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
				"code":  "INVALID_AUTH_FORMAT",
			})
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateAccessToken(parts[1])
		if err != nil {
			log.Printf("Token validation failed: %v", err)
			code := "INVALID_TOKEN"
			if jwtService.IsTokenExpired(parts[1]) {
				code = "TOKEN_EXPIRED"
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
				"code":  code,
			})
			c.Abort()
			return
		}

		c.Set(userContextKey, &UserContext{
			UserID: claims.UserID,
			Roles:  claims.Roles,
		})
		c.Set("user_id", claims.UserID.String())
		c.Set("roles", claims.Roles)

		c.Next()
	}
}

// RequireRole aborts with 403 unless the operator holds one of the roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx := GetUserContext(c)
		if userCtx == nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  "NOT_AUTHENTICATED",
			})
			c.Abort()
			return
		}

		for _, required := range roles {
			for _, held := range userCtx.Roles {
				if held == required {
					c.Next()
					return
				}
			}
		}

		c.JSON(http.StatusForbidden, gin.H{
			"error": "Insufficient permissions",
			"code":  "FORBIDDEN",
		})
		c.Abort()
	}
}

// GetUserContext retrieves the operator identity set by AuthMiddleware
func GetUserContext(c *gin.Context) *UserContext {
	value, exists := c.Get(userContextKey)
	if !exists {
		return nil
	}
	userCtx, ok := value.(*UserContext)
	if !ok {
		return nil
	}
	return userCtx
}
