package recognition

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderErrorTaxonomy(t *testing.T) {
	cause := errors.New("503 Service Unavailable")
	err := fmt.Errorf("extract: %w", NewProviderError(ErrorProviderOutage, "gemini", "upstream failed", cause))

	assert.Equal(t, ErrorProviderOutage, GetCategory(err))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRateLimited(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "model gemini [provider_outage]")

	assert.True(t, IsRateLimited(NewProviderError(ErrorRateLimited, "gemini", "429", nil)))
	assert.False(t, IsRetryable(NewProviderError(ErrorBadData, "gemini", "bad json", nil)))
	assert.Equal(t, ErrorInternal, GetCategory(errors.New("plain")))
}

func TestFeedbackFor(t *testing.T) {
	t.Run("internal errors carry technical detail", func(t *testing.T) {
		fb := FeedbackFor(errors.New("tls handshake failure"))
		assert.Equal(t, "Something went wrong", fb.Title)
		assert.Contains(t, fb.Tip, "tls handshake failure")
		assert.True(t, fb.Retryable)
	})

	t.Run("timeouts", func(t *testing.T) {
		fb := FeedbackFor(NewProviderError(ErrorTimeout, "m", "deadline", nil))
		assert.Equal(t, "Verification timed out", fb.Title)
	})
}

func TestExtractionRequestImages(t *testing.T) {
	front := Image{MIMEType: "image/jpeg", Data: []byte{1}}
	assert.Len(t, ExtractionRequest{Front: front}.Images(), 1)
	assert.Len(t, ExtractionRequest{Front: front, Back: &Image{}}.Images(), 1, "empty back image is ignored")
	assert.Len(t, ExtractionRequest{Front: front, Back: &Image{Data: []byte{2}}}.Images(), 2)
}

func TestFieldsProjection(t *testing.T) {
	f := Fields{Name: " Ravi Kumar ", DocumentNumber: "ABCDE1234F", ExpiryDate: "2030-01-01"}
	p := f.Profile()
	assert.Equal(t, "Ravi Kumar", p.Name)
	assert.Equal(t, map[string]string{"name": "Ravi Kumar", "documentNumber": "ABCDE1234F", "expiryDate": "2030-01-01"}, f.Map())
}
