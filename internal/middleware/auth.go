package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pymthouse/gateway/pkg/models"
)

const (
	AuthContextKey = "auth_result"
)

// TokenValidator resolves a raw bearer token to an authenticated session.
// A nil result with a nil error means the token is unknown or expired.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*models.AuthResult, error)
}

// BearerAuth middleware validates bearer tokens
func BearerAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required", "code": models.CodeUnauthorized})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format", "code": models.CodeUnauthorized})
			c.Abort()
			return
		}

		result, err := validator.Validate(c.Request.Context(), parts[1])
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate token", "code": models.CodeInternal})
			c.Abort()
			return
		}
		if result == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "code": models.CodeUnauthorized})
			c.Abort()
			return
		}

		c.Set(AuthContextKey, result)
		c.Next()
	}
}

// RequireScope middleware rejects sessions lacking the given scope.
// Must run after BearerAuth.
func RequireScope(scope models.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, ok := GetAuthResult(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "code": models.CodeUnauthorized})
			c.Abort()
			return
		}

		if !result.Scopes.Has(scope) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient scope", "code": models.CodeForbidden})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetAuthResult retrieves the authenticated session from the context
func GetAuthResult(c *gin.Context) (*models.AuthResult, bool) {
	value, exists := c.Get(AuthContextKey)
	if !exists {
		return nil, false
	}

	result, ok := value.(*models.AuthResult)
	return result, ok
}
