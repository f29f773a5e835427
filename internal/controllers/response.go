package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/osvaldoandrade/pixelq/internal/providers"
	"github.com/osvaldoandrade/pixelq/internal/services"
	"github.com/osvaldoandrade/pixelq/pkg/domain"

	"github.com/gin-gonic/gin"
)

const msgBadImage = "Invalid image upload."

// statusFor maps an outcome onto the HTTP status the app expects.
func statusFor(out domain.Outcome) int {
	if out.Success {
		return http.StatusOK
	}
	switch out.ErrorKind {
	case domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindPollTimeout:
		return http.StatusGatewayTimeout
	case domain.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeOutcome(c *gin.Context, out domain.Outcome) {
	c.JSON(statusFor(out), out)
}

// imageReader pulls one multipart image out of a request and validates it.
type imageReader struct {
	normalizer providers.Normalizer
}

// read returns a zero Image and no error when field is absent, so callers
// decide which validation message wins.
func (r imageReader) read(c *gin.Context, field string) (domain.Image, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return domain.Image{}, nil
	}
	if err != nil {
		return domain.Image{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	f, err := fh.Open()
	if err != nil {
		return domain.Image{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	defer f.Close()

	var src io.Reader = f
	if r.normalizer.MaxBytes > 0 {
		src = io.LimitReader(f, r.normalizer.MaxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return domain.Image{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	if len(data) == 0 {
		return domain.Image{}, nil
	}

	name := filepath.Base(fh.Filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "upload"
	}
	return r.normalizer.Normalize(domain.Image{Data: data, FileName: name, MIMEType: fh.Header.Get("Content-Type")})
}

func taskRequest(img domain.Image, params map[string]string) domain.TaskRequest {
	return domain.TaskRequest{Payload: img.Data, FileName: img.FileName, MIMEType: img.MIMEType, Params: params}
}

func invalid(msg string) domain.Outcome {
	return domain.FailedWithMessage(domain.ErrInvalidRequest, msg)
}

func formBool(c *gin.Context, key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(c.PostForm(key)))
	return b
}

var noImage = invalid(services.MsgNoImage)
