package domain

import "strings"

// Outcome is the single caller-facing result of one AI feature invocation.
// A successful outcome always carries an artifact; a failed one always
// carries an error kind.
type Outcome struct {
	Success   bool      `json:"success"`
	Artifact  string    `json:"content,omitempty"`
	Text      string    `json:"text,omitempty"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
	Message   string    `json:"message,omitempty"`
}

func Succeeded(artifact string) Outcome {
	if strings.TrimSpace(artifact) == "" {
		return Failed(ErrArtifactMissing)
	}
	return Outcome{Success: true, Artifact: artifact}
}

func Failed(err error) Outcome {
	kind := KindOf(err)
	if kind == "" {
		kind = KindVendorUnreachable
	}
	return Outcome{Success: false, ErrorKind: kind, Message: kind.Message()}
}

// FailedWithMessage keeps the kind of err but overrides the user message.
func FailedWithMessage(err error, msg string) Outcome {
	o := Failed(err)
	if strings.TrimSpace(msg) != "" {
		o.Message = msg
	}
	return o
}

// Valid reports whether o satisfies the success/failure invariant.
func (o Outcome) Valid() bool {
	if o.Success {
		return o.Artifact != "" && o.ErrorKind == ""
	}
	return o.ErrorKind != "" && o.Artifact == ""
}
