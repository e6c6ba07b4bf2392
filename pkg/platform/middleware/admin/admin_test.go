package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRequireAdminToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	cases := []struct {
		name  string
		hash  []byte
		token string
		want  int
	}{
		{"matching token", hash, "s3cret", http.StatusNoContent},
		{"wrong token", hash, "guess", http.StatusUnauthorized},
		{"missing token", hash, "", http.StatusUnauthorized},
		{"no hash configured", nil, "s3cret", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/v1/settings", nil)
			if tc.token != "" {
				req.Header.Set(HeaderAdminToken, tc.token)
			}
			rr := httptest.NewRecorder()
			RequireAdminToken(tc.hash, logger)(next).ServeHTTP(rr, req)
			assert.Equal(t, tc.want, rr.Code)
		})
	}
}
