package models

import (
	"fmt"
	"strings"
)

// Field names a profile or document attribute that settings can require.
type Field string

const (
	FieldName        Field = "name"
	FieldDOB         Field = "dob"
	FieldAddress     Field = "address"
	FieldGender      Field = "gender"
	FieldFatherName  Field = "fatherName"
	FieldMotherName  Field = "motherName"
	FieldNationality Field = "nationality"
	FieldIssueDate   Field = "issueDate"
	FieldExpiryDate  Field = "expiryDate"
)

// ProfileFields are the fields aggregated across documents, in merge order.
var ProfileFields = []Field{
	FieldName, FieldDOB, FieldAddress, FieldGender, FieldFatherName, FieldMotherName, FieldNationality,
}

// KnownFields is every field settings may list as required.
var KnownFields = append(append([]Field{}, ProfileFields...), FieldIssueDate, FieldExpiryDate)

func (f Field) IsValid() bool {
	for _, k := range KnownFields {
		if k == f {
			return true
		}
	}
	return false
}

// Profile is the customer identity aggregated across accepted documents.
// Empty string means "not yet extracted".
type Profile struct {
	Name        string `json:"name,omitempty"`
	DOB         string `json:"dob,omitempty"`
	Address     string `json:"address,omitempty"`
	Gender      string `json:"gender,omitempty"`
	FatherName  string `json:"father_name,omitempty"`
	MotherName  string `json:"mother_name,omitempty"`
	Nationality string `json:"nationality,omitempty"`

	// Sources records which document type supplied each field.
	Sources map[Field]string `json:"sources,omitempty"`
}

func (p *Profile) Get(f Field) string {
	switch f {
	case FieldName:
		return p.Name
	case FieldDOB:
		return p.DOB
	case FieldAddress:
		return p.Address
	case FieldGender:
		return p.Gender
	case FieldFatherName:
		return p.FatherName
	case FieldMotherName:
		return p.MotherName
	case FieldNationality:
		return p.Nationality
	}
	return ""
}

func (p *Profile) set(f Field, v, source string) {
	switch f {
	case FieldName:
		p.Name = v
	case FieldDOB:
		p.DOB = v
	case FieldAddress:
		p.Address = v
	case FieldGender:
		p.Gender = v
	case FieldFatherName:
		p.FatherName = v
	case FieldMotherName:
		p.MotherName = v
	case FieldNationality:
		p.Nationality = v
	default:
		return
	}
	if p.Sources == nil {
		p.Sources = make(map[Field]string)
	}
	p.Sources[f] = source
}

// Clone returns a deep copy.
func (p Profile) Clone() Profile {
	out := p
	if p.Sources != nil {
		out.Sources = make(map[Field]string, len(p.Sources))
		for k, v := range p.Sources {
			out.Sources[k] = v
		}
	}
	return out
}

// MergePolicy folds the fields extracted from one document into the session
// profile. It returns the merged profile and one mismatch line per conflicting field.
type MergePolicy func(current Profile, incoming Profile, source string) (Profile, []string)

// FirstWins keeps the first non-empty value seen for a field. A later document
// carrying a different value is reported as a mismatch.
func FirstWins(current Profile, incoming Profile, source string) (Profile, []string) {
	out := current.Clone()
	var mismatches []string
	for _, f := range ProfileFields {
		v := strings.TrimSpace(incoming.Get(f))
		if v == "" {
			continue
		}
		existing := out.Get(f)
		if existing == "" {
			out.set(f, v, source)
			continue
		}
		if !sameValue(existing, v) {
			mismatches = append(mismatches, mismatch(f, source, out.Sources[f]))
		}
	}
	return out, mismatches
}

// LastWins overwrites with the most recent non-empty value. Conflicts are still reported.
func LastWins(current Profile, incoming Profile, source string) (Profile, []string) {
	out := current.Clone()
	var mismatches []string
	for _, f := range ProfileFields {
		v := strings.TrimSpace(incoming.Get(f))
		if v == "" {
			continue
		}
		if existing := out.Get(f); existing != "" && !sameValue(existing, v) {
			mismatches = append(mismatches, mismatch(f, source, out.Sources[f]))
		}
		out.set(f, v, source)
	}
	return out, mismatches
}

// MergePolicyByName resolves a configured policy name. Unknown names fall back to FirstWins.
func MergePolicyByName(name string) MergePolicy {
	if strings.EqualFold(name, "last_wins") {
		return LastWins
	}
	return FirstWins
}

func mismatch(f Field, source, previous string) string {
	if previous == "" {
		previous = "an earlier document"
	}
	return fmt.Sprintf("%s mismatch: %s differs from %s", f, source, previous)
}

// sameValue compares extracted values ignoring case and whitespace runs.
func sameValue(a, b string) bool {
	return strings.EqualFold(strings.Join(strings.Fields(a), " "), strings.Join(strings.Fields(b), " "))
}
