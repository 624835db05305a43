package command

import (
	"fmt"
	"strconv"
	"strings"
)

// ArgumentsFunc validates positional arguments and converts them into wire
// arguments. The returned error is a plain reason, wrapped into an
// InvalidArgumentError by the caller.
type ArgumentsFunc func(args []interface{}) ([]string, error)

func noArguments(args []interface{}) ([]string, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("takes no arguments, got %d", len(args))
	}

	return []string{}, nil
}

// atLeastStrings accepts min or more non empty strings.
func atLeastStrings(min int) ArgumentsFunc {
	return func(args []interface{}) ([]string, error) {
		if len(args) < min {
			return nil, fmt.Errorf("takes at least %d arguments, got %d", min, len(args))
		}

		return nonEmptyStrings(args)
	}
}

// exactStrings accepts exactly n non empty strings.
func exactStrings(n int) ArgumentsFunc {
	return func(args []interface{}) ([]string, error) {
		if len(args) != n {
			return nil, fmt.Errorf("takes exactly %d arguments, got %d", n, len(args))
		}

		return nonEmptyStrings(args)
	}
}

// queueAndBody accepts a non empty queue name followed by a job body, which
// may be empty.
func queueAndBody(args []interface{}) ([]string, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("takes a queue and a job body, got %d arguments", len(args))
	}

	queue, ok := args[0].(string)
	if !ok || queue == "" {
		return nil, fmt.Errorf("queue must be a non empty string")
	}

	body, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("job body must be a string")
	}

	return []string{queue, body}, nil
}

// queueAndCount accepts a non empty queue name followed by an integer.
func queueAndCount(args []interface{}) ([]string, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("takes a queue and a count, got %d arguments", len(args))
	}

	queue, ok := args[0].(string)
	if !ok || queue == "" {
		return nil, fmt.Errorf("queue must be a non empty string")
	}

	count, ok := toInt64(args[1])
	if !ok {
		return nil, fmt.Errorf("count must be an integer")
	}

	return []string{queue, strconv.FormatInt(count, 10)}, nil
}

// queueAndPauseMode accepts a non empty queue name followed by one of
// PauseModes, in any case.
func queueAndPauseMode(args []interface{}) ([]string, error) {
	out, err := exactStrings(2)(args)
	if err != nil {
		return nil, err
	}

	mode := strings.ToLower(out[1])
	for _, known := range PauseModes {
		if mode == known {
			return []string{out[0], mode}, nil
		}
	}

	return nil, fmt.Errorf("pause mode must be one of %s, got '%s'", strings.Join(PauseModes, ", "), out[1])
}

// optionalCursor accepts nothing, in which case the scan starts at cursor 0,
// or a single integer cursor.
func optionalCursor(args []interface{}) ([]string, error) {
	switch len(args) {
	case 0:
		return []string{"0"}, nil

	case 1:
		cursor, ok := toInt64(args[0])
		if !ok || cursor < 0 {
			return nil, fmt.Errorf("cursor must be a positive integer")
		}

		return []string{strconv.FormatInt(cursor, 10)}, nil

	default:
		return nil, fmt.Errorf("takes at most a cursor, got %d arguments", len(args))
	}
}

func nonEmptyStrings(args []interface{}) ([]string, error) {
	out := make([]string, 0, len(args))

	for i, arg := range args {
		s, ok := arg.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("argument %d must be a non empty string", i)
		}

		out = append(out, s)
	}

	return out, nil
}

// Strings converts a list of strings to positional arguments.
func Strings(ss ...string) []interface{} {
	args := make([]interface{}, 0, len(ss))
	for _, s := range ss {
		args = append(args, s)
	}

	return args
}
