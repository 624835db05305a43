package marshal

import (
	"encoding/base64"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// CBOR encodes payloads as CBOR maps. Disque bodies are strings, so the
// encoded bytes are carried as standard base64.
type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func NewCBOR() (*CBOR, error) {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}

	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		return nil, err
	}

	return &CBOR{enc: enc, dec: dec}, nil
}

func (c *CBOR) Name() string { return "cbor" }

func (c *CBOR) Marshal(payload Payload) (string, error) {
	data, err := c.enc.Marshal(map[string]interface{}(payload))
	if err != nil {
		return "", &MarshalError{Format: "cbor", Op: "marshal", Err: err}
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

func (c *CBOR) Unmarshal(body string) (Payload, error) {
	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, &MarshalError{Format: "cbor", Op: "unmarshal", Err: err}
	}

	var payload map[string]interface{}
	if err := c.dec.Unmarshal(data, &payload); err != nil {
		return nil, &MarshalError{Format: "cbor", Op: "unmarshal", Err: err}
	}

	return Payload(payload), nil
}
