// Package settings owns the platform configuration new sessions start with:
// the document catalog, the verification settings and the decision thresholds.
package settings

import (
	"time"

	"vericore/internal/kyc/decision"
	"vericore/internal/kyc/models"
)

// Snapshot is one consistent version of the platform configuration.
// Sessions copy it when they start and never see later changes.
type Snapshot struct {
	Version    int                `json:"version"`
	UpdatedAt  time.Time          `json:"updated_at"`
	Catalog    models.Catalog     `json:"catalog"`
	Settings   models.Settings    `json:"settings"`
	Thresholds decision.Thresholds `json:"thresholds"`
}

// Defaults matches the configuration the product ships with.
func Defaults() Snapshot {
	return Snapshot{
		Version:    1,
		Catalog:    models.DefaultCatalog(),
		Settings:   models.DefaultSettings(),
		Thresholds: decision.DefaultThresholds(),
	}
}

// Validate checks the three parts against each other.
func (s *Snapshot) Validate() error {
	if err := s.Catalog.Validate(); err != nil {
		return err
	}
	s.Settings.Normalize()
	if err := s.Settings.Validate(s.Catalog); err != nil {
		return err
	}
	return s.Thresholds.Validate()
}
