package marshal

import (
	"errors"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var errNotAnObject = errors.New("body is not an object")

// JSON encodes payloads as JSON objects with keys in sorted order.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Marshal(payload Payload) (string, error) {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	body := "{}"
	for _, key := range keys {
		var err error
		if body, err = sjson.Set(body, EscapePath(key), payload[key]); err != nil {
			return "", &MarshalError{Format: "json", Op: "marshal", Err: err}
		}
	}

	return body, nil
}

func (JSON) Unmarshal(body string) (Payload, error) {
	if !gjson.Valid(body) {
		return nil, &MarshalError{Format: "json", Op: "unmarshal", Err: errors.New("invalid json")}
	}

	object, ok := gjson.Parse(body).Value().(map[string]interface{})
	if !ok {
		return nil, &MarshalError{Format: "json", Op: "unmarshal", Err: errNotAnObject}
	}

	return Payload(object), nil
}

// Get looks up a gjson path in a JSON body.
func Get(body, path string) (gjson.Result, bool) {
	result := gjson.Get(body, path)
	return result, result.Exists()
}

// Set sets the value at a sjson path of a JSON body. Values that parse as JSON
// are stored raw, anything else as a string.
func Set(body, path, value string) (string, error) {
	if body == "" {
		body = "{}"
	}

	if gjson.Valid(value) {
		return sjson.SetRaw(body, path, value)
	}

	return sjson.Set(body, path, value)
}

var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
)

// EscapePath escapes key so it addresses a single top level member.
func EscapePath(key string) string {
	return pathEscaper.Replace(key)
}
