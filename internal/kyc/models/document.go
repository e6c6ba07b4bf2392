package models

import (
	"strings"
	"time"
)

// UnreadableNumber is stored when the model could not read the document number.
const UnreadableNumber = "UNREADABLE"

// DocumentRecord is one accepted document. At most one per type per session;
// a re-capture of the same type replaces it.
type DocumentRecord struct {
	Type          string            `json:"type"`
	Number        string            `json:"number"`
	IssueDate     string            `json:"issue_date,omitempty"`
	ExpiryDate    string            `json:"expiry_date,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
	Front         []byte            `json:"-"`
	Back          []byte            `json:"-"`
	FrontMIMEType string            `json:"-"`
	CapturedAt    time.Time         `json:"captured_at"`
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02 January 2006",
	"January 2, 2006",
}

// ParseDocumentDate accepts the date layouts commonly printed on Indian documents.
func ParseDocumentDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ExpiredAt reports whether the document has a readable expiry date before now.
func (d DocumentRecord) ExpiredAt(now time.Time) bool {
	exp, ok := ParseDocumentDate(d.ExpiryDate)
	if !ok {
		return false
	}
	// valid through the printed day
	return now.After(exp.AddDate(0, 0, 1))
}
