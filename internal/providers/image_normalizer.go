package providers

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/osvaldoandrade/pixelq/pkg/domain"
)

// Normalizer checks uploads and shrinks oversize images before they leave
// the server.
type Normalizer struct {
	MaxBytes     int64
	MaxDimension int
}

// DetectImageType sniffs the magic bytes of a png, jpeg, gif or webp file.
func DetectImageType(data []byte) (string, bool) {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png", true
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg", true
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif", true
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp", true
	}
	return "", false
}

// Normalize validates img and returns it, downscaled when its longest edge
// exceeds MaxDimension. WebP passes through unchanged because it cannot be
// decoded here.
func (n Normalizer) Normalize(img domain.Image) (domain.Image, error) {
	if len(img.Data) == 0 {
		return img, fmt.Errorf("%w: empty image", domain.ErrInvalidRequest)
	}
	if n.MaxBytes > 0 && int64(len(img.Data)) > n.MaxBytes {
		return img, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInvalidRequest, n.MaxBytes)
	}
	mime, ok := DetectImageType(img.Data)
	if !ok {
		return img, fmt.Errorf("%w: unsupported image type", domain.ErrInvalidRequest)
	}
	img.MIMEType = mime
	if n.MaxDimension <= 0 || mime == "image/webp" {
		return img, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return img, fmt.Errorf("%w: corrupt image: %v", domain.ErrInvalidRequest, err)
	}
	if cfg.Width <= n.MaxDimension && cfg.Height <= n.MaxDimension {
		return img, nil
	}

	src, err := imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
	if err != nil {
		return img, fmt.Errorf("%w: corrupt image: %v", domain.ErrInvalidRequest, err)
	}
	dst := imaging.Fit(src, n.MaxDimension, n.MaxDimension, imaging.Lanczos)

	format := imaging.JPEG
	switch mime {
	case "image/png":
		format = imaging.PNG
	case "image/gif":
		format = imaging.GIF
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, format, imaging.JPEGQuality(90)); err != nil {
		return img, fmt.Errorf("re-encode image: %w", err)
	}
	img.Data = buf.Bytes()
	return img, nil
}
