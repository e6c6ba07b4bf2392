// Package recognition is the port to the external multimodal model that reads
// identity documents and compares faces. Nothing in this package knows about
// the wizard; callers get typed results or a *ProviderError.
package recognition

import (
	"context"
	"strings"

	"vericore/internal/kyc/models"
)

// Recognizer performs the two model calls the wizard needs.
type Recognizer interface {
	ExtractDocument(ctx context.Context, req ExtractionRequest) (*Extraction, error)
	MatchFace(ctx context.Context, req FaceMatchRequest) (*FaceMatch, error)
}

// Image is one captured frame.
type Image struct {
	MIMEType string
	Data     []byte
}

func (i Image) IsEmpty() bool { return len(i.Data) == 0 }

// ExtractionRequest asks the model to read one document from one or two images.
type ExtractionRequest struct {
	DocumentType   string
	Front          Image
	Back           *Image
	ExpectedFields []string
	PromptHint     string
}

func (r ExtractionRequest) HasBack() bool { return r.Back != nil && !r.Back.IsEmpty() }

// Images returns the request images in capture order.
func (r ExtractionRequest) Images() []Image {
	out := []Image{r.Front}
	if r.HasBack() {
		out = append(out, *r.Back)
	}
	return out
}

type ExtractionStatus string

const (
	StatusSuccess ExtractionStatus = "SUCCESS"
	StatusFail    ExtractionStatus = "FAIL"
)

// Fields are the attributes the model may read from a document.
type Fields struct {
	Name           string `json:"name,omitempty"`
	DOB            string `json:"dob,omitempty"`
	DocumentNumber string `json:"documentNumber,omitempty"`
	Address        string `json:"address,omitempty"`
	Gender         string `json:"gender,omitempty"`
	FatherName     string `json:"fatherName,omitempty"`
	MotherName     string `json:"motherName,omitempty"`
	Nationality    string `json:"nationality,omitempty"`
	IssueDate      string `json:"issueDate,omitempty"`
	ExpiryDate     string `json:"expiryDate,omitempty"`
}

// Profile projects the document fields onto the session profile.
func (f Fields) Profile() models.Profile {
	return models.Profile{
		Name:        strings.TrimSpace(f.Name),
		DOB:         strings.TrimSpace(f.DOB),
		Address:     strings.TrimSpace(f.Address),
		Gender:      strings.TrimSpace(f.Gender),
		FatherName:  strings.TrimSpace(f.FatherName),
		MotherName:  strings.TrimSpace(f.MotherName),
		Nationality: strings.TrimSpace(f.Nationality),
	}
}

// Map returns the non-empty fields keyed by their wire name.
func (f Fields) Map() map[string]string {
	out := map[string]string{}
	put := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	put("name", f.Name)
	put("dob", f.DOB)
	put("documentNumber", f.DocumentNumber)
	put("address", f.Address)
	put("gender", f.Gender)
	put("fatherName", f.FatherName)
	put("motherName", f.MotherName)
	put("nationality", f.Nationality)
	put("issueDate", f.IssueDate)
	put("expiryDate", f.ExpiryDate)
	return out
}

// Extraction is the model's reading of a document.
type Extraction struct {
	Status   ExtractionStatus
	Reason   string
	Fields   Fields
	Feedback string
	Tip      string
}

func (e *Extraction) Succeeded() bool { return e != nil && e.Status == StatusSuccess }

// FaceMatchRequest compares the reference face on a document with a selfie.
type FaceMatchRequest struct {
	DocumentFace Image
	Selfie       Image
	Challenge    models.Challenge
}

// FaceMatch is the model's comparison result. Score is already normalized to 0–100.
type FaceMatch struct {
	Score              int
	RawScore           float64
	ChallengeConfirmed bool
	Reasoning          string
}
