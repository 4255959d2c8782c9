// Package session owns the authenticated identity of the running client:
// the bearer token and the user profile.
//
// The session moves between three states:
//
//	Anonymous     no token
//	TokenOnly     token, profile not loaded yet
//	Authenticated token and profile
//
// Only the presence of a token decides IsAuthenticated. Token and user are
// persisted under StorageKey and restored on start; loading and error
// flags are transient.
//
// Store implements api.TokenSource, so the HTTP adapter reads the token
// from it on every request.
package session
