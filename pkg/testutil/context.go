package testutil

import (
	"net/http"

	id "ballotbox/pkg/domain"
	"ballotbox/pkg/requestcontext"
)

// WithVoter attaches an authenticated voter to the request context, the way
// the auth middleware would.
func WithVoter(req *http.Request, voterID id.VoterID, role string) *http.Request {
	ctx := requestcontext.WithVoterID(req.Context(), voterID)
	ctx = requestcontext.WithRole(ctx, role)
	return req.WithContext(ctx)
}

// WithClientMetadata attaches the request origin metadata the Origin
// middleware would capture.
func WithClientMetadata(req *http.Request, ip, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, userAgent))
}
