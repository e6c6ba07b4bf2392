package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"vericore/pkg/requestcontext"
)

type stubValidator struct {
	claims *ReviewerClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*ReviewerClaims, error) { return s.claims, s.err }

func TestRequireReviewer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reviewer := uuid.New()

	var gotName string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotName = requestcontext.ReviewerName(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("missing header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		RequireReviewer(stubValidator{}, logger)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		RequireReviewer(stubValidator{err: errors.New("bad signature")}, logger)(next).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("malformed reviewer id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer ok")
		RequireReviewer(stubValidator{claims: &ReviewerClaims{ReviewerID: "x"}}, logger)(next).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("valid token sets reviewer", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer ok")
		v := stubValidator{claims: &ReviewerClaims{ReviewerID: reviewer.String(), Name: "Asha"}}
		RequireReviewer(v, logger)(next).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "Asha", gotName)
	})
}
