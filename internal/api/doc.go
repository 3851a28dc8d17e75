// Package api is the REST client for the chat backend.
//
// A Client is the configured HTTP instance shared by the session manager
// and the conversation store: one base URL, one cookie jar (the backend's
// session cookies ride along on every request), and, when a token store is
// attached, the stored access token as a bearer header.
//
// Non-2xx responses are returned as *Error carrying the backend's
// {"message": "..."} text so callers can surface it. Bodies that parse but
// have the wrong shape return ErrMalformedResponse.
package api
