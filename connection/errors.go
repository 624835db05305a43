package connection

import (
	"errors"
	"fmt"
)

var (
	ErrNoServers    = errors.New("No servers available")
	ErrNotConnected = errors.New("Not connected")
	ErrInvalidHello = errors.New("Invalid HELLO response")
)

// AuthenticationError is returned when the server requires a password and
// none was provided, or when the password was rejected.
type AuthenticationError struct {
	Addr   string
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("Authentication failed (%s): %s", e.Addr, e.Reason)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}
