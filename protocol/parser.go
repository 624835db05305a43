package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const (
	TypeString  = '+'
	TypeError   = '-'
	TypeInteger = ':'
	TypeBulk    = '$'
	TypeArray   = '*'
)

const (
	// MaxBulkLength is the largest bulk payload accepted, as in Redis
	MaxBulkLength = 512 * 1024 * 1024

	// MaxArrayLength is the largest number of elements accepted in an array
	MaxArrayLength = 1024 * 1024
)

var (
	ErrUnknownReplyType = errors.New("Reply is malformed, unknown reply type")
	ErrMalformedLength  = errors.New("Reply is malformed, invalid length prefix")
	ErrMalformedInteger = errors.New("Reply is malformed, invalid integer")
	ErrMissingTerminal  = errors.New("Reply is malformed, bulk payload is not terminated by CRLF")
)

// Reader is the read side of a connection to the server. Every method must
// return an error, preferably a *ConnectionError, rather than short data.
type Reader interface {
	ReadByte() (byte, error)

	// ReadLine reads up to and including the next '\n' and returns the line
	// without its line terminator.
	ReadLine() ([]byte, error)

	// ReadExactly reads exactly n bytes.
	ReadExactly(n int) ([]byte, error)
}

// ReadReply reads a single reply. Error replies are returned as the error,
// see NewServerError. Reply is zero valued whenever err is not nil.
func ReadReply(r Reader) (Reply, error) {
	typ, err := r.ReadByte()
	if err != nil {
		return Reply{}, asConnectionError(err)
	}

	switch typ {
	case TypeString:
		line, err := readLine(r)
		if err != nil {
			return Reply{}, err
		}

		return String(string(line)), nil

	case TypeError:
		line, err := readLine(r)
		if err != nil {
			return Reply{}, err
		}

		return Reply{}, NewServerError(string(line))

	case TypeInteger:
		line, err := readLine(r)
		if err != nil {
			return Reply{}, err
		}

		n, err := strconv.ParseInt(string(line), 10, 64)
		if err != nil {
			return Reply{}, fmt.Errorf("Failed to parse '%s': %w", string(line), ErrMalformedInteger)
		}

		return Integer(n), nil

	case TypeBulk:
		length, err := readLength(r, MaxBulkLength)
		if err != nil {
			return Reply{}, err
		}

		if length < 0 {
			return Nil(), nil
		}

		payload, err := r.ReadExactly(length + 2)
		if err != nil {
			return Reply{}, asConnectionError(err)
		}

		if payload[length] != '\r' || payload[length+1] != '\n' {
			return Reply{}, ErrMissingTerminal
		}

		return String(string(payload[:length])), nil

	case TypeArray:
		count, err := readLength(r, MaxArrayLength)
		if err != nil {
			return Reply{}, err
		}

		if count < 0 {
			return Nil(), nil
		}

		elems := []Reply{}
		for i := 0; i < count; i++ {
			elem, err := ReadReply(r)
			if err != nil {
				return Reply{}, err
			}

			elems = append(elems, elem)
		}

		return Array(elems...), nil

	default:
		return Reply{}, fmt.Errorf("Failed to parse type '%c': %w", typ, ErrUnknownReplyType)
	}
}

func readLine(r Reader) ([]byte, error) {
	line, err := r.ReadLine()
	if err != nil {
		return nil, asConnectionError(err)
	}

	return line, nil
}

// readLength reads a length prefix. Negative lengths are returned as is,
// lengths above limit are malformed.
func readLength(r Reader, limit int) (int, error) {
	line, err := readLine(r)
	if err != nil {
		return 0, err
	}

	n, err := strconv.Atoi(string(line))
	if err != nil {
		return 0, fmt.Errorf("Failed to parse '%s': %w", string(line), ErrMalformedLength)
	}

	if n > limit {
		return 0, fmt.Errorf("Length %d exceeds %d: %w", n, limit, ErrMalformedLength)
	}

	return n, nil
}

// StreamReader adapts an io.Reader to a Reader.
type StreamReader struct {
	r *bufio.Reader
}

func NewStreamReader(r io.Reader) *StreamReader {
	if br, ok := r.(*bufio.Reader); ok {
		return &StreamReader{r: br}
	}

	return &StreamReader{r: bufio.NewReader(r)}
}

func (s *StreamReader) ReadByte() (byte, error) {
	return s.r.ReadByte()
}

func (s *StreamReader) ReadLine() ([]byte, error) {
	line, err := s.r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}

	return RemoveTrailingCR(line[:len(line)-1]), nil
}

func (s *StreamReader) ReadExactly(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return nil, err
	}

	return buf, nil
}

func RemoveTrailingCR(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\r' {
		// Remove the optional trailing \r
		return data[:len(data)-1]
	}

	return data
}
