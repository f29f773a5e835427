package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/osvaldoandrade/pixelq/pkg/auth"

	"github.com/gin-gonic/gin"
)

const claimsKey = "userClaims"

// AuthMiddleware requires a bearer token accepted by validator.
func AuthMiddleware(validator auth.Validator) gin.HandlerFunc {
	if validator == nil {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "identity validator not configured"})
		}
	}
	return func(c *gin.Context) {
		claims, err := validateBearer(validator, c.GetHeader("Authorization"))
		if err != nil {
			LoggerFrom(c).Debug("bearer rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func validateBearer(validator auth.Validator, authHeader string) (*auth.Claims, error) {
	token := bearerToken(authHeader)
	if token == "" {
		if strings.TrimSpace(authHeader) == "" {
			return nil, fmt.Errorf("missing Authorization header")
		}
		return nil, fmt.Errorf("invalid Authorization format")
	}
	return validator.Validate(token)
}

// ClaimsFrom returns the claims stored by AuthMiddleware.
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok && claims != nil
}

// SubjectFrom returns the authenticated subject, or "" when the request
// carries no claims.
func SubjectFrom(c *gin.Context) string {
	if claims, ok := ClaimsFrom(c); ok {
		return claims.Subject
	}
	return ""
}
