package polling

import (
	"fmt"
	"strings"

	"github.com/osvaldoandrade/pixelq/internal/jsonpath"
	"github.com/osvaldoandrade/pixelq/pkg/domain"
)

// Extract returns the artifact of a terminal status. It does not mutate
// status, so extracting the same status twice gives the same answer.
func Extract(spec domain.FeatureSpec, status domain.TaskStatus) (string, error) {
	switch status.State {
	case domain.StateDone:
	case domain.StateFailed:
		return "", fmt.Errorf("%w: state %s", domain.ErrVendorFailed, status.RawState)
	default:
		return "", fmt.Errorf("%w: task is %s, not done", domain.ErrArtifactMissing, status.State)
	}

	artifact := strings.TrimSpace(status.Artifact)
	if artifact == "" && len(status.Raw) > 0 && spec.ArtifactPath != "" {
		if doc, err := jsonpath.Decode(status.Raw); err == nil {
			artifact, _ = jsonpath.Scalar(doc, spec.ArtifactPath)
			artifact = strings.TrimSpace(artifact)
		}
	}
	if artifact == "" {
		return "", fmt.Errorf("%w: done without %q", domain.ErrArtifactMissing, spec.ArtifactPath)
	}
	return artifact, nil
}
