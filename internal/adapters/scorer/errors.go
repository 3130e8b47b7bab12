package scorer

import "errors"

var (
	// ErrConfiguration means a scorer's endpoint settings cannot be used.
	ErrConfiguration = errors.New("scorer misconfigured")
	// ErrTransient means the scorer could not be reached or refused the
	// request. The resend sweep retries it later.
	ErrTransient = errors.New("scorer unavailable")
	// ErrInvalidResponse means the scorer answered with a body that could
	// not be decoded.
	ErrInvalidResponse = errors.New("invalid scorer response")
)
