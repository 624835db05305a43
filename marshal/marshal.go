// Package marshal converts job bodies to and from structured payloads.
package marshal

import (
	"fmt"
	"strings"
)

// Payload is the decoded body of a job.
type Payload map[string]interface{}

type Marshaler interface {
	Name() string
	Marshal(payload Payload) (string, error)
	Unmarshal(body string) (Payload, error)
}

// MarshalError is returned when a payload cannot be encoded or a body cannot
// be decoded.
type MarshalError struct {
	Format string
	Op     string
	Err    error
}

func (e *MarshalError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Format, e.Op, e.Err)
}

func (e *MarshalError) Unwrap() error {
	return e.Err
}

// ByName returns the marshaler for name, "json" or "cbor".
func ByName(name string) (Marshaler, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSON{}, nil
	case "cbor":
		return NewCBOR()
	default:
		return nil, fmt.Errorf("unknown marshaler '%s'", name)
	}
}
