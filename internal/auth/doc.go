// Package auth provides JWT verification and HTTP middleware for the
// gateway's API surface. Tokens are HS256-signed with a shared secret
// from configuration; the "sub" claim identifies the caller and is
// made available to handlers through the request context.
package auth
