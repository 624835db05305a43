package protocol

import (
	"io"
	"strconv"
)

var (
	OkTerminal = []byte("+OK\r\n")
	Terminal   = []byte("\r\n")
)

// EncodeCommand encodes a command and its arguments as an array of bulk strings.
func EncodeCommand(name string, args []string) []byte {
	size := 16 + len(name)
	for _, arg := range args {
		size += 16 + len(arg)
	}

	b := make([]byte, 0, size)
	b = appendHeader(b, TypeArray, len(args)+1)
	b = appendBulk(b, name)

	for _, arg := range args {
		b = appendBulk(b, arg)
	}

	return b
}

func WriteCommand(w io.Writer, name string, args []string) error {
	_, err := w.Write(EncodeCommand(name, args))
	return err
}

// AppendReply appends the wire encoding of reply to b. Strings are always
// encoded as bulk strings.
func AppendReply(b []byte, reply Reply) []byte {
	switch reply.Kind {
	case KindString:
		return appendBulk(b, reply.Str)

	case KindInteger:
		b = append(b, TypeInteger)
		b = strconv.AppendInt(b, reply.Int, 10)
		return append(b, Terminal...)

	case KindArray:
		b = appendHeader(b, TypeArray, len(reply.Array))
		for _, elem := range reply.Array {
			b = AppendReply(b, elem)
		}
		return b

	default:
		return append(b, "$-1\r\n"...)
	}
}

func WriteReply(w io.Writer, reply Reply) error {
	_, err := w.Write(AppendReply(nil, reply))
	return err
}

func WriteOk(w io.Writer) error {
	_, err := w.Write(OkTerminal)
	return err
}

func WriteStatus(w io.Writer, status string) error {
	b := append([]byte{TypeString}, status...)
	_, err := w.Write(append(b, Terminal...))
	return err
}

func WriteError(w io.Writer, errMsg string) error {
	b := append([]byte{TypeError}, errMsg...)
	_, err := w.Write(append(b, Terminal...))
	return err
}

func appendHeader(b []byte, typ byte, n int) []byte {
	b = append(b, typ)
	b = strconv.AppendInt(b, int64(n), 10)
	return append(b, Terminal...)
}

func appendBulk(b []byte, s string) []byte {
	b = appendHeader(b, TypeBulk, len(s))
	b = append(b, s...)
	return append(b, Terminal...)
}
