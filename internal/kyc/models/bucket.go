package models

import (
	"slices"

	dErrors "vericore/pkg/domain-errors"
)

// Bucket is a category of proof a document can satisfy.
type Bucket string

const (
	BucketTax      Bucket = "Tax"
	BucketIdentity Bucket = "Identity"
	BucketAddress  Bucket = "Address"
)

// AllBuckets is the closed set, in display order.
var AllBuckets = []Bucket{BucketTax, BucketIdentity, BucketAddress}

func (b Bucket) IsValid() bool {
	return slices.Contains(AllBuckets, b)
}

func ParseBucket(s string) (Bucket, error) {
	b := Bucket(s)
	if !b.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown bucket: "+s)
	}
	return b, nil
}

// BucketSet is a normalized set of buckets: unique, in AllBuckets order.
type BucketSet []Bucket

// NewBucketSet normalizes bs into a set. Unknown values are dropped.
func NewBucketSet(bs ...Bucket) BucketSet {
	out := make(BucketSet, 0, len(bs))
	for _, b := range AllBuckets {
		if slices.Contains(bs, b) {
			out = append(out, b)
		}
	}
	return out
}

func (s BucketSet) Contains(b Bucket) bool { return slices.Contains(s, b) }

// Union returns s ∪ other. Neither input is modified.
func (s BucketSet) Union(other BucketSet) BucketSet {
	merged := make([]Bucket, 0, len(s)+len(other))
	merged = append(merged, s...)
	merged = append(merged, other...)
	return NewBucketSet(merged...)
}

// Minus returns s − other.
func (s BucketSet) Minus(other BucketSet) BucketSet {
	out := BucketSet{}
	for _, b := range s {
		if !other.Contains(b) {
			out = append(out, b)
		}
	}
	return out
}

// Intersects reports whether s and other share a bucket.
func (s BucketSet) Intersects(other BucketSet) bool {
	for _, b := range s {
		if other.Contains(b) {
			return true
		}
	}
	return false
}

func (s BucketSet) Strings() []string {
	out := make([]string, len(s))
	for i, b := range s {
		out[i] = string(b)
	}
	return out
}
