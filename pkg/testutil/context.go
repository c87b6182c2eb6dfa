package testutil

import (
	"net/http"

	id "lexflow/pkg/domain"
	"lexflow/pkg/requestcontext"
)

// AsUser attaches an authenticated user to the request, the way RequireAuth
// does after validating a bearer token.
func AsUser(req *http.Request, userID id.UserID) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

// FromAddress sets the client metadata a signature captures.
func FromAddress(req *http.Request, ip, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, userAgent))
}
