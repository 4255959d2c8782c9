// Package api is the HTTP adapter between the client stores and the remote
// blog REST API.
//
// # Overview
//
// Client.Do sends a JSON request and decodes a JSON response. Every request
// carries an X-Request-ID and, when the configured TokenSource has a token,
// an "Authorization: Bearer <token>" header. A per-call WithBearer option
// overrides the session token.
//
// # Error Handling
//
// Failures come in two shapes:
//   - *TransportError: no response was received (network failure or the
//     fixed request timeout). Matches ErrUnavailable.
//   - *HTTPError: the server answered with a non-2xx status. Matches
//     ErrUnauthorized (401), ErrForbidden (403) and ErrNotFound (404).
//
// A 401 additionally fires the listeners registered with OnUnauthorized
// before the error is returned, so the owner of the session can reset it
// while the caller still observes the failure. There is no retry.
package api
