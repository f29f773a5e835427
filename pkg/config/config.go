package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/osvaldoandrade/pixelq/internal/backoff"
	"github.com/osvaldoandrade/pixelq/pkg/domain"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port      int    `yaml:"port"`
	Env       string `yaml:"env"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	Vendor   VendorConfig             `yaml:"vendor"`
	Features map[string]FeatureConfig `yaml:"features"`

	Clipdrop   ClipdropConfig   `yaml:"clipdrop"`
	Cloudinary CloudinaryConfig `yaml:"cloudinary"`

	// ImageHost selects where synchronous edits are hosted: cloudinary or local.
	ImageHost         string `yaml:"imageHost"`
	LocalArtifactsDir string `yaml:"localArtifactsDir"`
	PublicBaseURL     string `yaml:"publicBaseUrl"`

	Persistence  ProviderConfig `yaml:"persistence"`
	AuthProvider ProviderConfig `yaml:"authProvider"`

	// RequirePremium gates the AI routes on the premium plan claim. Unset means true.
	RequirePremium *bool `yaml:"requirePremium"`

	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Upload    UploadConfig    `yaml:"upload"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

type VendorConfig struct {
	BaseURL        string `yaml:"baseUrl"`
	APIKey         string `yaml:"apiKey"`
	APIKeyHeader   string `yaml:"apiKeyHeader"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`

	// MaxResponseBytes caps create/status bodies, which may carry an
	// inline base64 artifact.
	MaxResponseBytes int64 `yaml:"maxResponseBytes"`
	MaxDownloadBytes int64 `yaml:"maxDownloadBytes"`
}

type FeatureConfig struct {
	CreatePath        string            `yaml:"createPath"`
	StatusPath        string            `yaml:"statusPath"`
	FileField         string            `yaml:"fileField"`
	Params            map[string]string `yaml:"params"`
	TaskIDPath        string            `yaml:"taskIdPath"`
	StatePath         string            `yaml:"statePath"`
	DoneState         string            `yaml:"doneState"`
	FailedStates      []string          `yaml:"failedStates"`
	ArtifactPath      string            `yaml:"artifactPath"`
	MaxAttempts       int               `yaml:"maxAttempts"`
	IntervalMillis    int               `yaml:"intervalMillis"`
	MaxIntervalMillis int               `yaml:"maxIntervalMillis"`
	BackoffPolicy     string            `yaml:"backoffPolicy"`
	Persist           *bool             `yaml:"persist"`
	Prompt            string            `yaml:"prompt"`
	FetchText         *bool             `yaml:"fetchText"`
}

type ClipdropConfig struct {
	BaseURL        string `yaml:"baseUrl"`
	APIKey         string `yaml:"apiKey"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

type CloudinaryConfig struct {
	URL       string `yaml:"url"`
	CloudName string `yaml:"cloudName"`
	APIKey    string `yaml:"apiKey"`
	APISecret string `yaml:"apiSecret"`
	Folder    string `yaml:"folder"`
}

// ProviderConfig names a registered plugin and carries its free-form settings.
type ProviderConfig struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config"`
}

// RawConfig renders the plugin settings as JSON for the plugin registries.
func (p ProviderConfig) RawConfig() (json.RawMessage, error) {
	if len(p.Config) == 0 {
		return json.RawMessage("{}"), nil
	}
	b, err := json.Marshal(p.Config)
	if err != nil {
		return nil, fmt.Errorf("%s config: %w", p.Type, err)
	}
	return b, nil
}

type RateLimitBucket struct {
	RequestsPerMinute int `yaml:"requestsPerMinute"`
	BurstSize         int `yaml:"burstSize"`
}

type RateLimitConfig struct {
	AI RateLimitBucket `yaml:"ai"`
}

type UploadConfig struct {
	MaxBytes          int64 `yaml:"maxBytes"`
	MaxImageDimension int   `yaml:"maxImageDimension"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	OTLPInsecure bool    `yaml:"otlpInsecure"`
	SampleRatio  float64 `yaml:"sampleRatio"`
}

// DefaultFeatures mirrors the observed vendor integrations.
func DefaultFeatures() map[string]FeatureConfig {
	yes, no := true, false
	return map[string]FeatureConfig{
		"ocr": {
			CreatePath:     "/api/tasks/document/ocr",
			FileField:      "image_file",
			Params:         map[string]string{"format": "txt"},
			TaskIDPath:     "data.task_id",
			StatePath:      "data.state",
			DoneState:      "1",
			ArtifactPath:   "data.file",
			MaxAttempts:    60,
			IntervalMillis: 1000,
			BackoffPolicy:  backoff.PolicyFixed,
			Persist:        &no,
			Prompt:         "Extract text from image",
			FetchText:      &yes,
		},
		"colorize": {
			CreatePath:     "/api/tasks/visual/colorization",
			FileField:      "image_file",
			Params:         map[string]string{"sync": "0", "return_type": "1"},
			TaskIDPath:     "data.task_id",
			StatePath:      "data.state",
			DoneState:      "1",
			ArtifactPath:   "data.image",
			MaxAttempts:    30,
			IntervalMillis: 1000,
			BackoffPolicy:  backoff.PolicyFixed,
			Persist:        &yes,
			Prompt:         "Colorize image",
			FetchText:      &no,
		},
		"enhance": {
			CreatePath:     "/api/tasks/visual/scale",
			FileField:      "image_file",
			Params:         map[string]string{"sync": "0", "type": "clean"},
			TaskIDPath:     "data.task_id",
			StatePath:      "data.state",
			DoneState:      "1",
			ArtifactPath:   "data.image",
			MaxAttempts:    20,
			IntervalMillis: 2000,
			BackoffPolicy:  backoff.PolicyFixed,
			Persist:        &yes,
			Prompt:         "Enhance image",
			FetchText:      &no,
		},
	}
}

// LoadConfigOptional loads filePath when it exists and otherwise starts from
// defaults. Environment overrides apply in both cases.
func LoadConfigOptional(filePath string) (*Config, error) {
	var c Config
	filePath = strings.TrimSpace(filePath)
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &c); err != nil {
				return nil, fmt.Errorf("parse %s: %w", filePath, err)
			}
		case errors.Is(err, os.ErrNotExist):
			log.Printf("Warning: config file %s not found, using defaults", filePath)
		default:
			return nil, err
		}
	}
	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

// LoadConfig requires filePath to exist.
func LoadConfig(filePath string) (*Config, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, err
	}
	return LoadConfigOptional(filePath)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("PIXELQ_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("VENDOR_BASE_URL"); v != "" {
		c.Vendor.BaseURL = v
	}
	if v := os.Getenv("VENDOR_API_KEY"); v != "" {
		c.Vendor.APIKey = v
	}
	if v := os.Getenv("CLIPDROP_API_KEY"); v != "" {
		c.Clipdrop.APIKey = v
	}
	if v := os.Getenv("CLOUDINARY_URL"); v != "" {
		c.Cloudinary.URL = v
	}
	if v := os.Getenv("IMAGE_HOST"); v != "" {
		c.ImageHost = v
	}
	if v := os.Getenv("LOCAL_ARTIFACTS_DIR"); v != "" {
		c.LocalArtifactsDir = v
	}
	if v := os.Getenv("PERSISTENCE_TYPE"); v != "" {
		c.Persistence.Type = v
	}
	if v := os.Getenv("REQUIRE_PREMIUM"); v != "" {
		b := parseBool(v)
		c.RequirePremium = &b
	}
	if v := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Tracing.SampleRatio = f
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.Vendor.BaseURL == "" {
		c.Vendor.BaseURL = "https://techhk.aoscdn.com"
	}
	if c.Vendor.APIKeyHeader == "" {
		c.Vendor.APIKeyHeader = "X-API-KEY"
	}
	if c.Vendor.TimeoutSeconds <= 0 {
		c.Vendor.TimeoutSeconds = 30
	}
	if c.Vendor.MaxResponseBytes <= 0 {
		c.Vendor.MaxResponseBytes = 32 << 20
	}
	if c.Vendor.MaxDownloadBytes <= 0 {
		c.Vendor.MaxDownloadBytes = 16 << 20
	}
	if c.Vendor.APIKey == "" {
		log.Println("Warning: vendor API key not set (dev only)")
	}

	defaults := DefaultFeatures()
	if c.Features == nil {
		c.Features = map[string]FeatureConfig{}
	}
	for name, def := range defaults {
		c.Features[name] = mergeFeature(def, c.Features[name])
	}

	if c.Clipdrop.BaseURL == "" {
		c.Clipdrop.BaseURL = "https://clipdrop-api.co"
	}
	if c.Clipdrop.TimeoutSeconds <= 0 {
		c.Clipdrop.TimeoutSeconds = 60
	}
	if c.Cloudinary.Folder == "" {
		c.Cloudinary.Folder = "pixelq"
	}
	if c.ImageHost == "" {
		if c.Cloudinary.URL != "" || c.Cloudinary.CloudName != "" {
			c.ImageHost = "cloudinary"
		} else {
			c.ImageHost = "local"
		}
	}
	if c.LocalArtifactsDir == "" {
		c.LocalArtifactsDir = "/tmp/pixelq-artifacts"
	}
	if c.Persistence.Type == "" {
		c.Persistence.Type = "memory"
	}
	if c.AuthProvider.Type == "" {
		c.AuthProvider.Type = "static"
	}
	if c.AuthProvider.Type == "static" && len(c.AuthProvider.Config) == 0 && c.IsDev() {
		c.AuthProvider.Config = map[string]any{"token": "dev-token", "subject": "dev", "plan": "premium"}
	}
	if c.RateLimit.AI.BurstSize <= 0 && c.RateLimit.AI.RequestsPerMinute > 0 {
		c.RateLimit.AI.BurstSize = c.RateLimit.AI.RequestsPerMinute
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = 10 << 20
	}
	if c.Upload.MaxImageDimension <= 0 {
		c.Upload.MaxImageDimension = 4096
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "pixelq"
	}
}

// mergeFeature overlays the non-zero fields of o onto def.
func mergeFeature(def, o FeatureConfig) FeatureConfig {
	out := def
	setStr := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	setStr(&out.CreatePath, o.CreatePath)
	setStr(&out.StatusPath, o.StatusPath)
	setStr(&out.FileField, o.FileField)
	setStr(&out.TaskIDPath, o.TaskIDPath)
	setStr(&out.StatePath, o.StatePath)
	setStr(&out.DoneState, o.DoneState)
	setStr(&out.ArtifactPath, o.ArtifactPath)
	setStr(&out.BackoffPolicy, o.BackoffPolicy)
	setStr(&out.Prompt, o.Prompt)
	if o.Params != nil {
		out.Params = o.Params
	}
	if o.FailedStates != nil {
		out.FailedStates = o.FailedStates
	}
	if o.MaxAttempts != 0 {
		out.MaxAttempts = o.MaxAttempts
	}
	if o.IntervalMillis != 0 {
		out.IntervalMillis = o.IntervalMillis
	}
	if o.MaxIntervalMillis != 0 {
		out.MaxIntervalMillis = o.MaxIntervalMillis
	}
	if o.Persist != nil {
		out.Persist = o.Persist
	}
	if o.FetchText != nil {
		out.FetchText = o.FetchText
	}
	return out
}

// FeatureSpecs builds the runtime feature table.
func (c *Config) FeatureSpecs() (map[domain.Feature]domain.FeatureSpec, error) {
	names := make([]string, 0, len(c.Features))
	for name := range c.Features {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[domain.Feature]domain.FeatureSpec, len(names))
	for _, name := range names {
		feature, err := domain.ParseFeature(name)
		if err != nil {
			return nil, fmt.Errorf("features.%s: %w", name, err)
		}
		fc := c.Features[name]
		out[feature] = domain.FeatureSpec{
			Feature:       feature,
			CreatePath:    fc.CreatePath,
			StatusPath:    fc.StatusPath,
			FileField:     fc.FileField,
			Params:        fc.Params,
			TaskIDPath:    fc.TaskIDPath,
			StatePath:     fc.StatePath,
			DoneState:     fc.DoneState,
			FailedStates:  fc.FailedStates,
			ArtifactPath:  fc.ArtifactPath,
			MaxAttempts:   fc.MaxAttempts,
			Interval:      time.Duration(fc.IntervalMillis) * time.Millisecond,
			MaxInterval:   time.Duration(fc.MaxIntervalMillis) * time.Millisecond,
			BackoffPolicy: fc.BackoffPolicy,
			Persist:       fc.Persist != nil && *fc.Persist,
			Prompt:        fc.Prompt,
			FetchText:     fc.FetchText != nil && *fc.FetchText,
		}
	}
	return out, nil
}

// PremiumRequired reports whether AI routes need the premium plan.
func (c *Config) PremiumRequired() bool {
	return c.RequirePremium == nil || *c.RequirePremium
}

func (c *Config) IsDev() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "dev")
}

func (c *Config) Validate() error {
	var errs []string
	dev := c.IsDev()

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, "port must be between 0 and 65535")
	}
	u, err := url.Parse(c.Vendor.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "vendor.baseUrl must be a valid http(s) URL")
	}
	if strings.TrimSpace(c.Vendor.APIKey) == "" && !dev {
		errs = append(errs, "vendor.apiKey is required in non-dev")
	}
	if strings.TrimSpace(c.AuthProvider.Type) == "" && !dev {
		errs = append(errs, "authProvider.type is required in non-dev")
	}

	names := make([]string, 0, len(c.Features))
	for name := range c.Features {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fc := c.Features[name]
		if _, err := domain.ParseFeature(name); err != nil {
			errs = append(errs, fmt.Sprintf("features.%s: unknown feature", name))
			continue
		}
		if strings.TrimSpace(fc.CreatePath) == "" {
			errs = append(errs, fmt.Sprintf("features.%s.createPath is required", name))
		}
		if strings.TrimSpace(fc.TaskIDPath) == "" || strings.TrimSpace(fc.StatePath) == "" || strings.TrimSpace(fc.ArtifactPath) == "" {
			errs = append(errs, fmt.Sprintf("features.%s needs taskIdPath, statePath and artifactPath", name))
		}
		if strings.TrimSpace(fc.DoneState) == "" {
			errs = append(errs, fmt.Sprintf("features.%s.doneState is required", name))
		}
		for _, f := range fc.FailedStates {
			if strings.TrimSpace(f) == strings.TrimSpace(fc.DoneState) {
				errs = append(errs, fmt.Sprintf("features.%s.failedStates must not contain doneState", name))
			}
		}
		if fc.MaxAttempts < 1 {
			errs = append(errs, fmt.Sprintf("features.%s.maxAttempts must be >= 1", name))
		}
		if fc.IntervalMillis < 1 {
			errs = append(errs, fmt.Sprintf("features.%s.intervalMillis must be >= 1", name))
		}
		if fc.BackoffPolicy != "" && !backoff.Valid(fc.BackoffPolicy) {
			errs = append(errs, fmt.Sprintf("features.%s.backoffPolicy %q is unknown", name, fc.BackoffPolicy))
		}
	}

	switch c.ImageHost {
	case "local":
	case "cloudinary":
		if c.Cloudinary.URL == "" && (c.Cloudinary.CloudName == "" || c.Cloudinary.APIKey == "" || c.Cloudinary.APISecret == "") {
			errs = append(errs, "cloudinary needs url or cloudName, apiKey and apiSecret")
		}
	default:
		errs = append(errs, fmt.Sprintf("imageHost %q must be cloudinary or local", c.ImageHost))
	}
	if strings.TrimSpace(c.Clipdrop.APIKey) == "" && !dev {
		errs = append(errs, "clipdrop.apiKey is required in non-dev")
	}
	if c.RateLimit.AI.RequestsPerMinute < 0 || c.RateLimit.AI.BurstSize < 0 {
		errs = append(errs, "rateLimit.ai values must be >= 0")
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, "upload.maxBytes must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func parseBool(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v == "true" || v == "1" || v == "yes" || v == "y" || v == "on"
}
