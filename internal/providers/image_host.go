package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/osvaldoandrade/pixelq/pkg/domain"
)

// ErrImageHost wraps every failure reported by an image host.
var ErrImageHost = errors.New("image host error")

// Hosted is a stored image.
type Hosted struct {
	URL      string
	PublicID string
}

// ImageHost stores images and derives transformed delivery URLs.
// transformation uses the Cloudinary URL syntax, e.g. "e_background_removal".
type ImageHost interface {
	Upload(ctx context.Context, img domain.Image, transformation string) (Hosted, error)
	TransformedURL(publicID, transformation string) (string, error)
}

const (
	// BackgroundRemoval is applied at upload time.
	BackgroundRemoval = "e_background_removal"
)

// GenerativeRemove builds the transformation that erases object from an image.
func GenerativeRemove(object string) (string, error) {
	object = strings.TrimSpace(object)
	if object == "" {
		return "", domain.ErrInvalidRequest
	}
	if strings.ContainsAny(object, "/,:;?#&") {
		return "", errors.Join(domain.ErrInvalidRequest, errors.New("object contains reserved characters"))
	}
	return "e_gen_remove:prompt_" + object, nil
}
