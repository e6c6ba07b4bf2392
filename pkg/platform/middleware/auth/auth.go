// Package auth guards the back-office API with reviewer bearer tokens.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "vericore/pkg/domain"
	"vericore/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the reviewer it was issued to.
type TokenValidator interface {
	ValidateToken(tokenString string) (*ReviewerClaims, error)
}

// ReviewerClaims is the transport-level view of a validated token.
type ReviewerClaims struct {
	ReviewerID string
	Name       string
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireReviewer rejects requests without a valid reviewer token and stores the
// reviewer on the request context.
func RequireReviewer(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			reviewerID, err := id.ParseReviewerID(claims.ReviewerID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed reviewer claim",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithReviewer(ctx, reviewerID, claims.Name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
