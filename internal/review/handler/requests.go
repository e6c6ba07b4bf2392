package handler

import (
	"strings"

	kyc "vericore/internal/kyc/models"
	id "vericore/pkg/domain"
	dErrors "vericore/pkg/domain-errors"
)

// AssignRequest is the body of POST /v1/records/{id}/assign.
type AssignRequest struct {
	ReviewerID *id.ReviewerID `json:"reviewer_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

func (r *AssignRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.ReviewerID != nil && r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required when assigning to another reviewer")
	}
	if len(r.Name) > 100 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 100 characters")
	}
	return nil
}

// CommentRequest is the body of POST /v1/records/{id}/comments.
type CommentRequest struct {
	Body string `json:"body"`
}

func (r *CommentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.Body) == "" {
		return dErrors.New(dErrors.CodeValidation, "body is required")
	}
	return nil
}

// StatusRequest is the body of POST /v1/records/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`

	status kyc.Status
}

func (r *StatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	status, err := kyc.ParseStatus(strings.TrimSpace(r.Status))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "status must be Approved or Rejected")
	}
	if status != kyc.StatusApproved && status != kyc.StatusRejected {
		return dErrors.New(dErrors.CodeValidation, "status must be Approved or Rejected")
	}
	r.status = status
	return nil
}
