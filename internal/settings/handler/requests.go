package handler

import (
	"time"

	"vericore/internal/kyc/decision"
	"vericore/internal/kyc/models"
	"vericore/internal/settings"
	dErrors "vericore/pkg/domain-errors"
)

// UpdateRequest is the body of PUT /v1/settings. Omitted sections are unchanged.
type UpdateRequest struct {
	Settings   *models.Settings     `json:"settings,omitempty"`
	Thresholds *decision.Thresholds `json:"thresholds,omitempty"`
	Catalog    *models.Catalog      `json:"catalog,omitempty"`
}

// Validate implements httputil.Validatable. Cross-section checks run in the service.
func (r *UpdateRequest) Validate() error {
	if r == nil || (r.Settings == nil && r.Thresholds == nil && r.Catalog == nil) {
		return dErrors.New(dErrors.CodeBadRequest, "settings, thresholds or catalog is required")
	}
	return nil
}

func (r *UpdateRequest) toUpdate() settings.Update {
	return settings.Update{
		Settings:   r.Settings,
		Thresholds: r.Thresholds,
		Catalog:    r.Catalog,
	}
}

type Response struct {
	Version    int                 `json:"version"`
	UpdatedAt  time.Time           `json:"updated_at"`
	Settings   models.Settings     `json:"settings"`
	Thresholds decision.Thresholds `json:"thresholds"`
}

func toResponse(s settings.Snapshot) Response {
	return Response{
		Version:    s.Version,
		UpdatedAt:  s.UpdatedAt,
		Settings:   s.Settings,
		Thresholds: s.Thresholds,
	}
}

type CatalogEntry struct {
	Name           string   `json:"name"`
	Buckets        []string `json:"buckets"`
	NeedsBack      bool     `json:"needs_back"`
	ExpectedFields []string `json:"expected_fields"`
	Helps          bool     `json:"helps"`
}

type CatalogResponse struct {
	RequiredBuckets []string       `json:"required_buckets"`
	Documents       []CatalogEntry `json:"documents"`
}
