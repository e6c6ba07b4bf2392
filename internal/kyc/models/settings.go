package models

import (
	"slices"

	dErrors "vericore/pkg/domain-errors"
)

// Settings is the platform configuration a session snapshots when it starts.
type Settings struct {
	RequiredBuckets        BucketSet `json:"required_buckets" yaml:"required_buckets"`
	RequiredFields         []Field   `json:"required_fields" yaml:"required_fields"`
	StrictFaceMatch        bool      `json:"strict_face_match" yaml:"strict_face_match"`
	RequireLiveness        bool      `json:"require_liveness" yaml:"require_liveness"`
	RequireLivenessGesture bool      `json:"require_liveness_gesture" yaml:"require_liveness_gesture"`
	AutoRejectExpired      bool      `json:"auto_reject_expired" yaml:"auto_reject_expired"`
	MergePolicy            string    `json:"merge_policy" yaml:"merge_policy"`
}

func DefaultSettings() Settings {
	return Settings{
		RequiredBuckets:   NewBucketSet(BucketTax, BucketAddress),
		RequiredFields:    []Field{FieldName, FieldDOB, FieldAddress, FieldGender, FieldFatherName},
		StrictFaceMatch:   true,
		RequireLiveness:   true,
		AutoRejectExpired: true,
		MergePolicy:       "first_wins",
	}
}

// Normalize dedupes buckets and fields in place.
func (s *Settings) Normalize() {
	s.RequiredBuckets = NewBucketSet(s.RequiredBuckets...)
	fields := make([]Field, 0, len(s.RequiredFields))
	for _, f := range s.RequiredFields {
		if !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}
	s.RequiredFields = fields
	if s.MergePolicy == "" {
		s.MergePolicy = "first_wins"
	}
}

// Validate checks the settings against the catalog they will run with.
func (s Settings) Validate(catalog Catalog) error {
	if len(s.RequiredBuckets) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one required bucket is needed")
	}
	for _, b := range s.RequiredBuckets {
		if !b.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "unknown bucket: "+string(b))
		}
	}
	if missing := s.RequiredBuckets.Minus(catalog.Coverage()); len(missing) > 0 {
		return dErrors.New(dErrors.CodeValidation, "no catalog document satisfies bucket "+string(missing[0]))
	}
	for _, f := range s.RequiredFields {
		if !f.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "unknown field: "+string(f))
		}
	}
	switch s.MergePolicy {
	case "first_wins", "last_wins":
	default:
		return dErrors.New(dErrors.CodeValidation, "merge_policy must be first_wins or last_wins")
	}
	return nil
}

// Merge returns the configured merge policy.
func (s Settings) Merge() MergePolicy {
	return MergePolicyByName(s.MergePolicy)
}
