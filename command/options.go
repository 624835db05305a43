package command

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Options are the named options of a command invocation, keyed by their
// lowercase name (e.g. "timeout", "replicate").
type Options map[string]interface{}

type OptionType uint8

const (
	// OptionInt accepts Go integer kinds only. Floats and numeric strings are
	// rejected, even when they hold an integral value.
	OptionInt OptionType = iota
	OptionString
	// OptionStrings accepts a []string or a single string, each entry is
	// emitted as its own keyword/value pair.
	OptionStrings
	// OptionBool emits the bare keyword when true and nothing when false.
	OptionBool
)

func (t OptionType) String() string {
	switch t {
	case OptionInt:
		return "integer"
	case OptionString:
		return "string"
	case OptionStrings:
		return "string list"
	case OptionBool:
		return "bool"
	default:
		return "unknown"
	}
}

type OptionSpec struct {
	Name string

	// Keyword is emitted before the value. An empty keyword emits the value
	// alone, at the option's position.
	Keyword string

	Type OptionType

	// Default is used when the option is not provided. A nil Default omits
	// the option.
	Default interface{}

	// Values restricts string options to a fixed set of (lowercase) values.
	Values []string
}

func (o Options) has(name string) bool {
	v, ok := o[name]
	return ok && v != nil
}

// Bool returns the option as a bool, false if missing or not a bool.
func (o Options) Bool(name string) bool {
	b, ok := o[name].(bool)
	return ok && b
}

// Int returns the option as an int64.
func (o Options) Int(name string) (int64, bool) {
	return toInt64(o[name])
}

// buildOptions validates opts against specs and expands them into wire
// arguments, in the order specs are declared.
func buildOptions(name Name, specs []OptionSpec, opts Options) ([]string, error) {
	known := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		known[spec.Name] = struct{}{}
	}

	unknown := make([]string, 0)
	for key := range opts {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &InvalidOptionError{Command: name, Option: unknown[0], Reason: "unknown option"}
	}

	args := make([]string, 0, 2*len(opts))

	for _, spec := range specs {
		value, ok := opts[spec.Name]
		if !ok || value == nil {
			if spec.Default == nil {
				continue
			}

			value = spec.Default
		}

		var err error
		args, err = spec.append(name, args, value)
		if err != nil {
			return nil, err
		}
	}

	return args, nil
}

func (spec OptionSpec) append(name Name, args []string, value interface{}) ([]string, error) {
	invalid := func(reason string) error {
		return &InvalidOptionError{Command: name, Option: spec.Name, Reason: reason}
	}

	switch spec.Type {
	case OptionInt:
		n, ok := toInt64(value)
		if !ok {
			return nil, invalid("must be an integer")
		}

		return spec.appendValue(args, strconv.FormatInt(n, 10)), nil

	case OptionString:
		s, ok := value.(string)
		if !ok || s == "" {
			return nil, invalid("must be a non empty string")
		}

		if !spec.allows(s) {
			return nil, invalid("must be one of " + strings.Join(spec.Values, ", "))
		}

		return spec.appendValue(args, s), nil

	case OptionStrings:
		var values []string
		switch v := value.(type) {
		case string:
			values = []string{v}
		case []string:
			values = v
		default:
			return nil, invalid("must be a string or a list of strings")
		}

		for _, s := range values {
			if s == "" || !spec.allows(s) {
				return nil, invalid("must only contain non empty strings from the allowed values")
			}

			args = spec.appendValue(args, s)
		}

		return args, nil

	case OptionBool:
		b, ok := value.(bool)
		if !ok {
			return nil, invalid("must be a bool")
		}

		if b {
			args = append(args, spec.Keyword)
		}

		return args, nil

	default:
		return nil, invalid("has an unknown type")
	}
}

func (spec OptionSpec) appendValue(args []string, value string) []string {
	if spec.Keyword != "" {
		args = append(args, spec.Keyword)
	}

	return append(args, value)
}

func (spec OptionSpec) allows(s string) bool {
	if len(spec.Values) == 0 {
		return true
	}

	for _, v := range spec.Values {
		if v == s {
			return true
		}
	}

	return false
}

// toInt64 accepts Go integer kinds only.
func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return uintToInt64(uint64(v))
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return uintToInt64(v)
	default:
		return 0, false
	}
}

func uintToInt64(v uint64) (int64, bool) {
	if v > math.MaxInt64 {
		return 0, false
	}

	return int64(v), true
}
