package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vericore/pkg/domain-errors"
)

// IDs must be valid, non-empty, non-nil UUIDs.
func TestParseSessionID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSessionID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSessionID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseSessionID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseSessionID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, SessionID(valid), id)
		assert.False(t, id.IsNil())
	})
}

// Session ids arrive in URL paths; parsing must reject hostile input.
func TestParseSessionID_HostileInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE kyc_records;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Unicode zero-width space", "550e8400\u200B-e29b-41d4-a716-446655440000", true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSessionID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestIDTypes_ConsistentParsing(t *testing.T) {
	valid := uuid.New().String()
	_, errSession := ParseSessionID(valid)
	_, errReviewer := ParseReviewerID(valid)
	require.NoError(t, errSession)
	require.NoError(t, errReviewer)

	for _, input := range []string{"", "invalid", uuid.Nil.String()} {
		_, errSession := ParseSessionID(input)
		_, errReviewer := ParseReviewerID(input)
		assert.Error(t, errSession, input)
		assert.Error(t, errReviewer, input)
	}
}

func TestSessionID_TextRoundTrip(t *testing.T) {
	id := NewSessionID()
	b, err := id.MarshalText()
	require.NoError(t, err)

	var back SessionID
	require.NoError(t, back.UnmarshalText(b))
	assert.Equal(t, id, back)
}

func TestCaseRef(t *testing.T) {
	t.Run("derived reference is well formed and stable", func(t *testing.T) {
		id := NewSessionID()
		ref := CaseRefFor(id)
		_, err := ParseCaseRef(string(ref))
		require.NoError(t, err)
		assert.Equal(t, ref, CaseRefFor(id))
	})

	t.Run("leading zeros are kept", func(t *testing.T) {
		id := SessionID(uuid.MustParse("00000001-0000-4000-8000-000000000000"))
		assert.Equal(t, CaseRef("KYC-00001"), CaseRefFor(id))
		assert.Equal(t, 1, CaseRefFor(id).Number())
	})

	t.Run("rejects malformed references", func(t *testing.T) {
		for _, s := range []string{"", "KYC-1", "kyc-12345", "KYC-123456", "ABC-12345"} {
			_, err := ParseCaseRef(s)
			assert.Error(t, err, s)
		}
	})
}
