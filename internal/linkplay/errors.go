package linkplay

import "errors"

// Package errors. Every error returned by the HTTP client wraps exactly one
// of the three kind sentinels so callers can classify without string
// matching: unsupported feeds the capability probe, transient feeds the
// failure-streak backoff, malformed is treated like transient by pollers
// but logged distinctly.
var (
	// ErrUnsupported marks an endpoint this firmware does not implement.
	ErrUnsupported = errors.New("linkplay: endpoint not supported")

	// ErrTransient marks a network-level or temporary device failure that
	// a later retry may clear.
	ErrTransient = errors.New("linkplay: transient failure")

	// ErrMalformed marks a response that arrived but could not be decoded.
	ErrMalformed = errors.New("linkplay: malformed response")
)

// IsUnsupported reports whether err marks a permanently missing endpoint.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// IsTransient reports whether err marks a retryable failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsMalformed reports whether err marks an undecodable response.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed)
}
