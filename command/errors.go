package command

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCommand = errors.New("Invalid command")
)

// InvalidArgumentError is returned when the positional arguments of a command
// have the wrong count or type. No I/O happens for an invalid command.
type InvalidArgumentError struct {
	Command Name
	Reason  string
	Args    []interface{}
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("Invalid arguments for %s: %s (%v)", e.Command, e.Reason, e.Args)
}

// InvalidOptionError is returned for unknown option names and for option
// values of the wrong type.
type InvalidOptionError struct {
	Command Name
	Option  string
	Reason  string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("Invalid option %q for %s: %s", e.Option, e.Command, e.Reason)
}

// InvalidResponseError is returned when a reply was valid RESP but does not
// have the shape the command expects.
type InvalidResponseError struct {
	Command Name
	Reason  string
	Body    string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("Invalid response for %s: %s, got %s", e.Command, e.Reason, e.Body)
}

func IsInvalidArgument(err error) bool {
	var argErr *InvalidArgumentError
	return errors.As(err, &argErr)
}

func IsInvalidOption(err error) bool {
	var optErr *InvalidOptionError
	return errors.As(err, &optErr)
}

func IsInvalidResponse(err error) bool {
	var respErr *InvalidResponseError
	return errors.As(err, &respErr)
}
