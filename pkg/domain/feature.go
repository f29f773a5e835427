package domain

import (
	"net/url"
	"strings"
	"time"
)

// FeatureSpec is everything the task client and poller need to drive one
// vendor feature. Instances come from configuration.
type FeatureSpec struct {
	Feature      Feature
	CreatePath   string
	StatusPath   string // defaults to CreatePath; the task id is appended
	FileField    string
	Params       map[string]string
	TaskIDPath   string
	StatePath    string
	DoneState    string
	FailedStates []string
	ArtifactPath string

	MaxAttempts   int
	Interval      time.Duration
	MaxInterval   time.Duration
	BackoffPolicy string

	Persist   bool
	Prompt    string
	FetchText bool
}

// StatusURLPath returns the status endpoint path for taskID.
func (s FeatureSpec) StatusURLPath(taskID string) string {
	base := s.StatusPath
	if strings.TrimSpace(base) == "" {
		base = s.CreatePath
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(taskID)
}

// Classify maps a raw vendor state onto a TaskState. An empty raw state
// means the payload had no usable state field.
func (s FeatureSpec) Classify(raw string) TaskState {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StateUnknown
	}
	if raw == s.DoneState {
		return StateDone
	}
	for _, f := range s.FailedStates {
		if raw == strings.TrimSpace(f) {
			return StateFailed
		}
	}
	return StatePending
}

// WallClockBudget is the longest a poll loop for this feature can sleep.
func (s FeatureSpec) WallClockBudget() time.Duration {
	if s.MaxAttempts <= 1 {
		return 0
	}
	step := s.Interval
	if s.MaxInterval > step {
		step = s.MaxInterval
	}
	return time.Duration(s.MaxAttempts-1) * step
}
