package api

type requestOptions struct {
	bearer string
}

// RequestOption adjusts a single call to Do.
type RequestOption func(*requestOptions)

// WithBearer sends token instead of the session token. An empty token keeps
// the session token.
func WithBearer(token string) RequestOption {
	return func(o *requestOptions) { o.bearer = token }
}
