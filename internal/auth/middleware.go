package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	errMissingHeader = errors.New("missing Authorization header")
	errBadHeader     = errors.New("invalid Authorization header format")
	errBadToken      = errors.New("invalid or expired token")
)

// AuthRequired is a Gin middleware that validates JWT from Authorization: Bearer <token>
func AuthRequired(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(c, jwtManager)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches the session when a valid bearer token is present and lets
// anonymous callers through. A token that is present but invalid is still rejected.
func OptionalAuth(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(c, jwtManager)
		switch {
		case errors.Is(err, errMissingHeader):
		case err != nil:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
			return
		default:
			setClaims(c, claims)
		}
		c.Next()
	}
}

func bearerClaims(c *gin.Context, jwtManager *JWTManager) (*Claims, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, errMissingHeader
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return nil, errBadHeader
	}

	claims, err := jwtManager.ParseAndValidate(parts[1])
	if err != nil {
		return nil, errBadToken
	}
	return claims, nil
}

// RequireStaff rejects sessions that do not belong to staff. It must run after AuthRequired.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserRole(c) != RoleStaff {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "staff access required"})
			return
		}
		c.Next()
	}
}

// Store user info into Gin context for later handlers.
func setClaims(c *gin.Context, claims *Claims) {
	c.Set("userID", claims.UserID)
	c.Set("userEmail", claims.Email)
	c.Set("userRole", claims.Role)
}
