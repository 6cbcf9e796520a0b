package remote

import "errors"

// ErrCredentialsExpired signals that a remote call was rejected because the
// session token or credentials are no longer valid. It is a distinct error
// variant so callers can pattern-match with errors.Is instead of inspecting
// error strings.
var ErrCredentialsExpired = errors.New("remote credentials expired")

// IsCredentialsExpired reports whether err carries the expired-credentials
// variant anywhere in its chain.
func IsCredentialsExpired(err error) bool {
	return errors.Is(err, ErrCredentialsExpired)
}
