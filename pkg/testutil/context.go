package testutil

import (
	"net/http"

	id "vericore/pkg/domain"
	"vericore/pkg/requestcontext"
)

// WithReviewer puts a reviewer on the request context, as the reviewer auth
// middleware would after validating a token.
func WithReviewer(req *http.Request, reviewerID id.ReviewerID, name string) *http.Request {
	return req.WithContext(requestcontext.WithReviewer(req.Context(), reviewerID, name))
}

// WithRequestID sets the correlation id normally assigned by the request middleware.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
