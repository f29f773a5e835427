package domain

import (
	"encoding"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Feature string

const (
	FeatureOCR      Feature = "OCR"
	FeatureColorize Feature = "COLORIZE"
	FeatureEnhance  Feature = "ENHANCE"
)

// Features lists the asynchronous vendor features in a stable order.
var Features = []Feature{FeatureOCR, FeatureColorize, FeatureEnhance}

func ParseFeature(s string) (Feature, error) {
	switch Feature(strings.ToUpper(strings.TrimSpace(s))) {
	case FeatureOCR:
		return FeatureOCR, nil
	case FeatureColorize, "COLORIZATION":
		return FeatureColorize, nil
	case FeatureEnhance, "UPSCALE":
		return FeatureEnhance, nil
	}
	return "", fmt.Errorf("%w: unknown feature %q", ErrInvalidRequest, s)
}

// TaskRequest is the payload submitted to a vendor create-task endpoint.
// Callers must not mutate it after handing it to the orchestrator.
type TaskRequest struct {
	Payload  []byte
	FileName string
	MIMEType string
	Params   map[string]string
}

func (r TaskRequest) Validate() error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("%w: image payload is empty", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.FileName) == "" {
		return fmt.Errorf("%w: file name is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.MIMEType) == "" {
		return fmt.Errorf("%w: mime type is required", ErrInvalidRequest)
	}
	return nil
}

// WithParams returns a copy of r whose params are defaults overlaid by r.Params.
func (r TaskRequest) WithParams(defaults map[string]string) TaskRequest {
	merged := make(map[string]string, len(defaults)+len(r.Params))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range r.Params {
		if strings.TrimSpace(v) != "" {
			merged[k] = v
		}
	}
	r.Params = merged
	return r
}

// TaskHandle identifies one vendor-side task. It lives only for the duration
// of a single orchestration and is never persisted.
type TaskHandle struct {
	TaskID    string    `json:"taskId"`
	Feature   Feature   `json:"feature"`
	CreatedAt time.Time `json:"createdAt"`
}

type TaskState string

const (
	StatePending TaskState = "PENDING"
	StateDone    TaskState = "DONE"
	StateFailed  TaskState = "FAILED"
	StateUnknown TaskState = "UNKNOWN"
)

// IsTerminal reports whether a state will not change on later polls.
func (s TaskState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// TaskStatus is the result of a single status query.
type TaskStatus struct {
	State    TaskState       `json:"state"`
	RawState string          `json:"rawState,omitempty"`
	Artifact string          `json:"artifact,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

var (
	_ encoding.TextMarshaler = Feature("")
	_ encoding.TextMarshaler = TaskState("")
)

func (f Feature) MarshalText() ([]byte, error)   { return []byte(string(f)), nil }
func (s TaskState) MarshalText() ([]byte, error) { return []byte(string(s)), nil }
