package auth

import (
	"strings"
	"time"
)

// PlanPremium is the plan value that unlocks the AI routes.
const PlanPremium = "premium"

// Claims represents authentication token claims
type Claims struct {
	Subject   string
	Email     string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	IssuedAt  time.Time
	// Plan is the subscription plan, read from a configurable claim.
	Plan string
	Raw  map[string]interface{}
}

// IsPremium reports whether the caller holds the premium plan.
func (c *Claims) IsPremium() bool {
	if c == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(c.Plan), PlanPremium)
}

// Validator validates authentication tokens
type Validator interface {
	Validate(token string) (*Claims, error)
}

// Config contains JWKS validator configuration
type Config struct {
	JwksURL     string
	Issuer      string
	Audience    string
	ClockSkew   time.Duration
	HTTPTimeout time.Duration
	// PlanClaim is a dotted path into the token claims. Default "plan".
	PlanClaim string
}
