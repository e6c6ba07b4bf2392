package models

import (
	"strings"

	dErrors "vericore/pkg/domain-errors"
)

// DocumentType describes one kind of document the wizard accepts.
type DocumentType struct {
	Name           string    `json:"name" yaml:"name"`
	Buckets        BucketSet `json:"buckets" yaml:"buckets"`
	NeedsBack      bool      `json:"needs_back" yaml:"needs_back"`
	ExpectedFields []string  `json:"expected_fields" yaml:"expected_fields"`
	// PromptHint is appended to the extraction instruction, e.g. that a card carries no address.
	PromptHint string `json:"prompt_hint,omitempty" yaml:"prompt_hint,omitempty"`
}

// Catalog is the ordered list of document types. Order drives the "available documents" list.
type Catalog struct {
	Documents []DocumentType `json:"documents" yaml:"documents"`
}

// DefaultCatalog mirrors the documents supported out of the box.
func DefaultCatalog() Catalog {
	return Catalog{Documents: []DocumentType{
		{
			Name:           "PAN Card",
			Buckets:        NewBucketSet(BucketTax),
			ExpectedFields: []string{"Name", "Father's Name", "DOB", "PAN Number"},
			PromptHint:     "PAN has no address.",
		},
		{
			Name:           "Passport",
			Buckets:        NewBucketSet(BucketIdentity, BucketAddress),
			NeedsBack:      true,
			ExpectedFields: []string{"Name", "Passport Number", "DOB", "Gender", "Address", "Nationality"},
			PromptHint:     "The address is usually printed on the last page.",
		},
		{
			Name:           "Aadhaar Card",
			Buckets:        NewBucketSet(BucketIdentity, BucketAddress),
			NeedsBack:      true,
			ExpectedFields: []string{"Name", "Aadhaar Number", "DOB", "Gender", "Address"},
			PromptHint:     "The address is printed on the back.",
		},
		{
			Name:           "Driving License",
			Buckets:        NewBucketSet(BucketIdentity, BucketAddress),
			ExpectedFields: []string{"Name", "DL Number", "DOB", "Address"},
		},
	}}
}

// Lookup finds a document type by name, case-insensitively.
func (c Catalog) Lookup(name string) (DocumentType, bool) {
	name = strings.TrimSpace(name)
	for _, d := range c.Documents {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return DocumentType{}, false
}

// Available returns catalog entries not yet captured, in catalog order.
func (c Catalog) Available(captured map[string]DocumentRecord) []DocumentType {
	out := make([]DocumentType, 0, len(c.Documents))
	for _, d := range c.Documents {
		if _, done := captured[d.Name]; !done {
			out = append(out, d)
		}
	}
	return out
}

// Validate checks the catalog is usable: non-empty, unique names, known buckets.
func (c Catalog) Validate() error {
	if len(c.Documents) == 0 {
		return dErrors.New(dErrors.CodeValidation, "catalog must list at least one document")
	}
	seen := make(map[string]bool, len(c.Documents))
	for _, d := range c.Documents {
		key := strings.ToLower(strings.TrimSpace(d.Name))
		if key == "" {
			return dErrors.New(dErrors.CodeValidation, "catalog document name is required")
		}
		if seen[key] {
			return dErrors.New(dErrors.CodeValidation, "duplicate catalog document: "+d.Name)
		}
		seen[key] = true
		if len(d.Buckets) == 0 {
			return dErrors.New(dErrors.CodeValidation, d.Name+" must satisfy at least one bucket")
		}
		for _, b := range d.Buckets {
			if !b.IsValid() {
				return dErrors.New(dErrors.CodeValidation, d.Name+" lists unknown bucket "+string(b))
			}
		}
	}
	return nil
}

// Coverage is the union of every bucket the catalog can satisfy.
func (c Catalog) Coverage() BucketSet {
	out := BucketSet{}
	for _, d := range c.Documents {
		out = out.Union(d.Buckets)
	}
	return out
}
