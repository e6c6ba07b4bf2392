// Package buckets decides whether the documents captured so far cover the
// proof categories the platform requires.
package buckets

import "vericore/internal/kyc/models"

// Fulfillment is the tracker's answer for one (required, satisfied) pair.
type Fulfillment struct {
	Met         bool             `json:"met"`
	Required    models.BucketSet `json:"required"`
	Satisfied   models.BucketSet `json:"satisfied"`
	Outstanding models.BucketSet `json:"outstanding"`
}

// Evaluate reports met = required ⊆ satisfied and the outstanding remainder.
func Evaluate(required, satisfied models.BucketSet) Fulfillment {
	required = models.NewBucketSet(required...)
	satisfied = models.NewBucketSet(satisfied...)
	outstanding := required.Minus(satisfied)
	return Fulfillment{
		Met:         len(outstanding) == 0,
		Required:    required,
		Satisfied:   satisfied,
		Outstanding: outstanding,
	}
}

// Accept folds a newly accepted document's buckets into the satisfied set.
// The result is always a superset of satisfied.
func Accept(satisfied models.BucketSet, doc models.DocumentType) models.BucketSet {
	return satisfied.Union(doc.Buckets)
}

// Helps reports whether capturing doc would cover at least one outstanding bucket.
func Helps(f Fulfillment, doc models.DocumentType) bool {
	return doc.Buckets.Intersects(f.Outstanding)
}
