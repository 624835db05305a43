package protocol

import (
	"strconv"
	"strings"
)

type Kind uint8

const (
	KindNil Kind = iota
	KindString
	KindInteger
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Reply is a decoded RESP reply. Simple and bulk strings are both KindString,
// bulk strings may hold arbitrary bytes.
type Reply struct {
	Kind  Kind
	Str   string
	Int   int64
	Array []Reply
}

func Nil() Reply {
	return Reply{Kind: KindNil}
}

func String(s string) Reply {
	return Reply{Kind: KindString, Str: s}
}

func Integer(n int64) Reply {
	return Reply{Kind: KindInteger, Int: n}
}

func Array(elems ...Reply) Reply {
	if elems == nil {
		elems = []Reply{}
	}

	return Reply{Kind: KindArray, Array: elems}
}

// Strings is a shorthand for an array of strings.
func Strings(ss ...string) Reply {
	elems := make([]Reply, 0, len(ss))
	for _, s := range ss {
		elems = append(elems, String(s))
	}

	return Array(elems...)
}

func (r Reply) IsNil() bool {
	return r.Kind == KindNil
}

// Scalar returns the reply as a string if it is a string or an integer.
func (r Reply) Scalar() (string, bool) {
	switch r.Kind {
	case KindString:
		return r.Str, true
	case KindInteger:
		return strconv.FormatInt(r.Int, 10), true
	default:
		return "", false
	}
}

// Value converts the reply into plain Go values: string, int64, nil or
// []interface{}.
func (r Reply) Value() interface{} {
	switch r.Kind {
	case KindString:
		return r.Str
	case KindInteger:
		return r.Int
	case KindArray:
		values := make([]interface{}, 0, len(r.Array))
		for _, elem := range r.Array {
			values = append(values, elem.Value())
		}
		return values
	default:
		return nil
	}
}

func (r Reply) String() string {
	var b strings.Builder
	r.format(&b)
	return b.String()
}

func (r Reply) format(b *strings.Builder) {
	switch r.Kind {
	case KindString:
		b.WriteString(strconv.Quote(r.Str))
	case KindInteger:
		b.WriteString(strconv.FormatInt(r.Int, 10))
	case KindArray:
		b.WriteByte('[')
		for i, elem := range r.Array {
			if i > 0 {
				b.WriteString(", ")
			}
			elem.format(b)
		}
		b.WriteByte(']')
	default:
		b.WriteString("nil")
	}
}
