// Package auth handles the chat backend's JWT tokens.
//
// Access and refresh tokens are HS256 JWTs whose "sub" claim is the user id
// and whose "kind" claim says which of the two they are. The development
// backend signs and verifies them with an Issuer and guards its API with
// HTTPAuthMiddleware. The client never holds the secret; it only uses
// Inspect to read a stored token's subject and expiry.
package auth
