package handler

import (
	"net/http"
	"strings"

	"vericore/internal/kyc/recognition"
	dErrors "vericore/pkg/domain-errors"
)

// MaxImageBytes bounds a single decoded frame.
const MaxImageBytes = 8 << 20

var allowedMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// SelectRequest is the body of POST /v1/sessions/{id}/select.
type SelectRequest struct {
	Document string `json:"document"`
}

func (r *SelectRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Document = strings.TrimSpace(r.Document)
	if r.Document == "" {
		return dErrors.New(dErrors.CodeValidation, "document is required")
	}
	if len(r.Document) > 100 {
		return dErrors.New(dErrors.CodeValidation, "document must be at most 100 characters")
	}
	return nil
}

// CaptureRequest is the body of POST /v1/sessions/{id}/captures. Image is
// base64 in JSON.
type CaptureRequest struct {
	MIMEType string `json:"mime_type"`
	Image    []byte `json:"image"`
}

func (r *CaptureRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Image) == 0 {
		return dErrors.New(dErrors.CodeValidation, "image is required")
	}
	if len(r.Image) > MaxImageBytes {
		return dErrors.New(dErrors.CodeValidation, "image is too large")
	}
	r.MIMEType = strings.ToLower(strings.TrimSpace(r.MIMEType))
	if r.MIMEType == "" {
		r.MIMEType = http.DetectContentType(r.Image)
	}
	if !allowedMIMETypes[r.MIMEType] {
		return dErrors.New(dErrors.CodeValidation, "image must be jpeg, png or webp")
	}
	return nil
}

func (r *CaptureRequest) image() recognition.Image {
	return recognition.Image{MIMEType: r.MIMEType, Data: r.Image}
}

// CameraDeniedRequest reports a camera failure from the client.
type CameraDeniedRequest struct {
	Reason string `json:"reason"`
}

func (r *CameraDeniedRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if len(r.Reason) > 200 {
		r.Reason = r.Reason[:200]
	}
	return nil
}
