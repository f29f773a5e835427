package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/pixelq/pkg/auth"
)

const PremiumOnlyMessage = "This feature is only available for premium subscriptions."

// RequirePremium lets through callers on the premium plan. In dev an
// X-Plan header stands in for a missing plan claim.
func RequirePremium(required bool, dev bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !required {
			c.Next()
			return
		}
		claims, _ := ClaimsFrom(c)
		if claims.IsPremium() {
			c.Next()
			return
		}
		if dev && (claims == nil || strings.TrimSpace(claims.Plan) == "") &&
			strings.EqualFold(strings.TrimSpace(c.GetHeader("X-Plan")), auth.PlanPremium) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": PremiumOnlyMessage})
	}
}
