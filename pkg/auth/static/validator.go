package static

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"strings"

	"github.com/osvaldoandrade/pixelq/pkg/auth"
)

type tokenConfig struct {
	// Token is the exact bearer token value expected by this validator.
	Token string `json:"token"`

	// Subject is returned as claims.Subject.
	Subject string `json:"subject,omitempty"`

	Email string `json:"email,omitempty"`

	// Plan is returned as claims.Plan (premium gate).
	Plan string `json:"plan,omitempty"`

	Raw map[string]any `json:"raw,omitempty"`
}

type validatorConfig struct {
	tokenConfig
	// Tokens lets one deployment hand out several fixed tokens.
	Tokens []tokenConfig `json:"tokens,omitempty"`
}

type validator struct {
	tokens []tokenConfig
}

func NewValidatorFromJSON(raw json.RawMessage) (auth.Validator, error) {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return nil, errors.New("static auth: missing config")
	}

	var cfg validatorConfig
	// Allow config to be either:
	// - JSON object: {"token":"...","subject":"..."} or {"tokens":[...]}
	// - JSON string: "token-value"
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &cfg.Token); err != nil {
			return nil, fmtError("static auth: invalid config", err)
		}
	} else {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmtError("static auth: invalid config", err)
		}
	}

	all := cfg.Tokens
	if strings.TrimSpace(cfg.Token) != "" {
		all = append([]tokenConfig{cfg.tokenConfig}, all...)
	}
	v := &validator{}
	for _, tc := range all {
		tc.Token = strings.TrimSpace(tc.Token)
		if tc.Token == "" {
			return nil, errors.New("static auth: token is required")
		}
		tc.Subject = strings.TrimSpace(tc.Subject)
		if tc.Subject == "" {
			tc.Subject = "static"
		}
		if tc.Raw == nil {
			tc.Raw = map[string]any{}
		}
		v.tokens = append(v.tokens, tc)
	}
	if len(v.tokens) == 0 {
		return nil, errors.New("static auth: token is required")
	}
	return v, nil
}

func (v *validator) Validate(token string) (*auth.Claims, error) {
	token = strings.TrimSpace(token)
	for _, tc := range v.tokens {
		if subtle.ConstantTimeCompare([]byte(token), []byte(tc.Token)) == 1 {
			return &auth.Claims{
				Subject: tc.Subject,
				Email:   tc.Email,
				Plan:    tc.Plan,
				Raw:     tc.Raw,
			}, nil
		}
	}
	return nil, errors.New("invalid token")
}

func init() {
	auth.RegisterProvider("static", NewValidatorFromJSON)
}

func fmtError(msg string, err error) error {
	if err == nil {
		return errors.New(msg)
	}
	return errors.New(msg + ": " + err.Error())
}
