package domain

import (
	"context"
	"errors"
)

var (
	ErrVendorUnreachable    = errors.New("vendor unreachable")
	ErrTaskCreationRejected = errors.New("task creation rejected")
	ErrPollTimeout          = errors.New("poll timeout")
	ErrArtifactMissing      = errors.New("artifact missing")
	ErrMalformedResponse    = errors.New("malformed vendor response")
	ErrVendorFailed         = errors.New("vendor reported failure")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrCanceled             = errors.New("canceled")
)

type ErrorKind string

const (
	KindVendorUnreachable    ErrorKind = "VENDOR_UNREACHABLE"
	KindTaskCreationRejected ErrorKind = "TASK_CREATION_REJECTED"
	KindPollTimeout          ErrorKind = "POLL_TIMEOUT"
	KindArtifactMissing      ErrorKind = "ARTIFACT_MISSING"
	KindMalformedResponse    ErrorKind = "MALFORMED_RESPONSE"
	KindVendorFailed         ErrorKind = "VENDOR_FAILED"
	KindInvalidRequest       ErrorKind = "INVALID_REQUEST"
	KindCanceled             ErrorKind = "CANCELED"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInvalidRequest, KindInvalidRequest},
	{ErrCanceled, KindCanceled},
	{ErrTaskCreationRejected, KindTaskCreationRejected},
	{ErrPollTimeout, KindPollTimeout},
	{ErrArtifactMissing, KindArtifactMissing},
	{ErrMalformedResponse, KindMalformedResponse},
	{ErrVendorFailed, KindVendorFailed},
	{ErrVendorUnreachable, KindVendorUnreachable},
}

// KindOf classifies an error chain. Context errors count as cancellation;
// anything unrecognised is reported as an unreachable vendor.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindVendorUnreachable
}

// Message is the human-readable text shown to app users for a failure kind.
func (k ErrorKind) Message() string {
	switch k {
	case KindInvalidRequest:
		return "Invalid request."
	case KindCanceled:
		return "Request was canceled."
	case KindTaskCreationRejected:
		return "The processing service rejected the image."
	case KindPollTimeout:
		return "Processing timed out. Please try again."
	case KindArtifactMissing:
		return "Processing finished without a result."
	case KindMalformedResponse:
		return "The processing service returned an unreadable response."
	case KindVendorFailed:
		return "The processing service could not process the image."
	default:
		return "The processing service is unavailable."
	}
}
