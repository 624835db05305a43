package protocol

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// CodePaused prefixes the errors Disque returns for paused queues
	CodePaused = "PAUSED"

	// CodeNoAuth prefixes the error returned to commands sent before AUTH
	CodeNoAuth = "NOAUTH"
)

// ServerError is an error reply sent by the server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

// Code returns the first word of the error message, e.g. "ERR" or "NOAUTH".
func (e *ServerError) Code() string {
	if i := strings.IndexByte(e.Message, ' '); i >= 0 {
		return e.Message[:i]
	}

	return e.Message
}

// PausedError is returned when the server refuses a command because the
// queue is paused. It unwraps to the *ServerError carrying the message.
type PausedError struct {
	err *ServerError
}

func (e *PausedError) Error() string {
	return e.err.Message
}

func (e *PausedError) Unwrap() error {
	return e.err
}

// NewServerError maps an error reply message to a typed error.
func NewServerError(message string) error {
	serverErr := &ServerError{Message: message}

	if serverErr.Code() == CodePaused {
		return &PausedError{err: serverErr}
	}

	return serverErr
}

// ConnectionError is a failure of the underlying stream: the socket could not
// be opened, a write failed, or a read hit EOF or a timeout.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("connection error: %v", e.Err)
	}

	return fmt.Sprintf("connection error (%s): %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is, or wraps, a *ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// asConnectionError leaves connection errors untouched and turns stream
// errors into connection errors.
func asConnectionError(err error) error {
	if IsConnectionError(err) {
		return err
	}

	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}

	return &ConnectionError{Err: err}
}
