package providers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/osvaldoandrade/pixelq/pkg/domain"
)

type CloudinaryOptions struct {
	URL       string
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	// UploadPrefix overrides the API host. Tests only.
	UploadPrefix string
	Logger       *slog.Logger
}

type cloudinaryHost struct {
	cld    *cloudinary.Cloudinary
	folder string
	logger *slog.Logger
}

// NewCloudinaryHost builds a host from a cloudinary:// URL or explicit credentials.
func NewCloudinaryHost(opts CloudinaryOptions) (ImageHost, error) {
	var (
		cld *cloudinary.Cloudinary
		err error
	)
	if strings.TrimSpace(opts.URL) != "" {
		cld, err = cloudinary.NewFromURL(opts.URL)
	} else {
		cld, err = cloudinary.NewFromParams(opts.CloudName, opts.APIKey, opts.APISecret)
	}
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	cld.Config.URL.Secure = true
	if opts.UploadPrefix != "" {
		cld.Config.API.UploadPrefix = opts.UploadPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &cloudinaryHost{cld: cld, folder: opts.Folder, logger: logger}, nil
}

func (h *cloudinaryHost) Upload(ctx context.Context, img domain.Image, transformation string) (Hosted, error) {
	params := uploader.UploadParams{
		PublicID:       uuid.NewString(),
		Folder:         h.folder,
		Transformation: transformation,
	}
	res, err := h.cld.Upload.Upload(ctx, bytes.NewReader(img.Data), params)
	if err != nil {
		return Hosted{}, fmt.Errorf("%w: %v", ErrImageHost, err)
	}
	if res.Error.Message != "" {
		return Hosted{}, fmt.Errorf("%w: %s", ErrImageHost, res.Error.Message)
	}
	if res.SecureURL == "" {
		return Hosted{}, fmt.Errorf("%w: upload returned no url", ErrImageHost)
	}
	h.logger.Debug("image uploaded", "public_id", res.PublicID, "transformation", transformation)
	return Hosted{URL: res.SecureURL, PublicID: res.PublicID}, nil
}

func (h *cloudinaryHost) TransformedURL(publicID, transformation string) (string, error) {
	asset, err := h.cld.Image(publicID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageHost, err)
	}
	asset.Transformation = transformation
	u, err := asset.String()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageHost, err)
	}
	return u, nil
}
