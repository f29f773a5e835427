package providers

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/osvaldoandrade/pixelq/pkg/domain"
)

// localHost writes images to disk. Transformations are recorded on the URL
// but not applied, so it is only suitable for development.
type localHost struct {
	rootDir       string
	publicBaseURL string
}

// NewLocalHost serves files from publicBaseURL when set, else as file:// URLs.
func NewLocalHost(rootDir, publicBaseURL string) ImageHost {
	return &localHost{rootDir: rootDir, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

func extensionFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

func (h *localHost) Upload(ctx context.Context, img domain.Image, transformation string) (Hosted, error) {
	if err := ctx.Err(); err != nil {
		return Hosted{}, err
	}
	publicID := uuid.NewString()
	dst := filepath.Join(h.rootDir, publicID+extensionFor(img.MIMEType))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Hosted{}, fmt.Errorf("%w: %v", ErrImageHost, err)
	}
	if err := os.WriteFile(dst, img.Data, 0o644); err != nil {
		return Hosted{}, fmt.Errorf("%w: %v", ErrImageHost, err)
	}
	u, err := h.fileURL(filepath.Base(dst), transformation)
	if err != nil {
		return Hosted{}, err
	}
	return Hosted{URL: u, PublicID: filepath.Base(dst)}, nil
}

func (h *localHost) TransformedURL(publicID, transformation string) (string, error) {
	if publicID == "" || strings.ContainsAny(publicID, `/\`) {
		return "", fmt.Errorf("%w: bad public id %q", ErrImageHost, publicID)
	}
	return h.fileURL(publicID, transformation)
}

func (h *localHost) fileURL(name, transformation string) (string, error) {
	var base string
	if h.publicBaseURL != "" {
		base = h.publicBaseURL + "/artifacts/" + url.PathEscape(name)
	} else {
		abs, err := filepath.Abs(filepath.Join(h.rootDir, name))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrImageHost, err)
		}
		base = "file://" + abs
	}
	if transformation != "" {
		base += "?t=" + url.QueryEscape(transformation)
	}
	return base, nil
}
