package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/pixelq/pkg/auth"
	"github.com/osvaldoandrade/pixelq/pkg/auth/static"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func staticValidator(t *testing.T) auth.Validator {
	t.Helper()
	v, err := static.NewValidatorFromJSON(json.RawMessage(`{"tokens":[
		{"token":"pro","subject":"bob","plan":"premium"},
		{"token":"free","subject":"alice","plan":"free"},
		{"token":"noplan","subject":"carol"}
	]}`))
	if err != nil {
		t.Fatalf("static validator: %v", err)
	}
	return v
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.POST("/api/ai/colorize-image", func(c *gin.Context) {
		sub := ""
		if claims, ok := ClaimsFrom(c); ok {
			sub = claims.Subject
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "subject": sub})
	})
	return r
}

func do(r http.Handler, authz string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/ai/colorize-image", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(RequestIDMiddleware(), LoggerMiddleware(nil), AuthMiddleware(staticValidator(t)))

	tests := []struct {
		name   string
		authz  string
		status int
	}{
		{"valid bearer", "Bearer pro", http.StatusOK},
		{"lowercase scheme", "bearer free", http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic pro", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, tt.authz, nil)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if rec.Header().Get(RequestIDHeader) == "" {
				t.Error("request id header missing")
			}
			if tt.status == http.StatusUnauthorized && !strings.Contains(rec.Body.String(), `"success":false`) {
				t.Errorf("body = %s", rec.Body.String())
			}
		})
	}
}

func TestAuthMiddlewareWithoutValidator(t *testing.T) {
	rec := do(newRouter(AuthMiddleware(nil)), "Bearer pro", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequirePremium(t *testing.T) {
	v := staticValidator(t)
	tests := []struct {
		name     string
		required bool
		dev      bool
		authz    string
		plan     string
		status   int
	}{
		{"premium claim", true, false, "Bearer pro", "", http.StatusOK},
		{"free claim", true, false, "Bearer free", "", http.StatusForbidden},
		{"gate disabled", false, false, "Bearer free", "", http.StatusOK},
		{"dev header without claim", true, true, "Bearer noplan", "premium", http.StatusOK},
		{"dev header cannot upgrade free", true, true, "Bearer free", "premium", http.StatusForbidden},
		{"header ignored outside dev", true, false, "Bearer noplan", "premium", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(AuthMiddleware(v), RequirePremium(tt.required, tt.dev))
			rec := do(r, tt.authz, map[string]string{"X-Plan": tt.plan})
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusForbidden {
				var body map[string]any
				_ = json.Unmarshal(rec.Body.Bytes(), &body)
				if body["success"] != false || body["message"] != PremiumOnlyMessage {
					t.Errorf("body = %v", body)
				}
			}
		})
	}
}

func TestRequestIDPropagation(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if seen != "req-123" || rec.Header().Get(RequestIDHeader) != "req-123" {
		t.Fatalf("seen = %q header = %q", seen, rec.Header().Get(RequestIDHeader))
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(rec.Header().Get(RequestIDHeader)) != 36 {
		t.Errorf("generated id = %q, want a uuid", rec.Header().Get(RequestIDHeader))
	}
}
