package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luma/disq/protocol"
)

const (
	ReadBufferSize   = 16 << 10
	DefaultKeepAlive = 45 * time.Second
)

var (
	ErrNotConnected = errors.New("Transport is not connected")
)

type TCP struct {
	addr      string
	keepAlive time.Duration

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader

	responseTimeout time.Duration
	waitForData     bool

	log   *zap.Logger
	trace bool
}

func NewTCP(options Options) *TCP {
	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	keepAlive := options.KeepAlive
	if keepAlive == 0 {
		keepAlive = DefaultKeepAlive
	}

	return &TCP{
		addr:      net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		keepAlive: keepAlive,
		trace:     options.Trace,
		log:       log,
	}
}

// TCPFactory returns a Factory building TCP transports that share the
// provided logger.
func TCPFactory(log *zap.Logger) Factory {
	return func(host string, port int) Transport {
		return NewTCP(Options{Host: host, Port: port, Log: log})
	}
}

func (t *TCP) Addr() string {
	return t.addr
}

func (t *TCP) Connect(connectTimeout, responseTimeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	d := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: t.keepAlive,
	}

	conn, err := d.Dial("tcp", t.addr)
	if err != nil {
		return t.connErr(err)
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	t.conn = conn
	t.r = bufio.NewReaderSize(conn, ReadBufferSize)
	t.responseTimeout = responseTimeout

	t.log.Debug("Connected", zap.String("addr", t.addr))

	return nil
}

func (t *TCP) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}

	err := t.conn.Close()
	t.conn = nil
	t.r = nil

	t.log.Debug("Disconnected", zap.String("addr", t.addr))

	if err != nil {
		return t.connErr(err)
	}

	return nil
}

func (t *TCP) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil
}

func (t *TCP) WaitForData(wait bool) {
	t.waitForData = wait
}

func (t *TCP) Write(data []byte) error {
	if t.conn == nil {
		return t.connErr(ErrNotConnected)
	}

	if t.trace {
		t.log.Debug("WRITE", zap.ByteString("data", data))
	}

	if t.responseTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.responseTimeout)); err != nil {
			return t.connErr(err)
		}
	}

	// net.Conn.Write returns an error for any short write
	if _, err := t.conn.Write(data); err != nil {
		return t.connErr(err)
	}

	return nil
}

func (t *TCP) ReadByte() (b byte, err error) {
	err = t.read(func() error {
		b, err = t.r.ReadByte()
		return err
	})

	return b, err
}

func (t *TCP) ReadLine() (line []byte, err error) {
	err = t.read(func() error {
		// a timed out read returns what it had so far
		chunk, err := t.r.ReadBytes('\n')
		line = append(line, chunk...)
		return err
	})

	if err != nil {
		return nil, err
	}

	return protocol.RemoveTrailingCR(line[:len(line)-1]), nil
}

func (t *TCP) ReadExactly(n int) (buf []byte, err error) {
	buf = make([]byte, n)
	read := 0

	err = t.read(func() error {
		// a timed out read may already have filled part of buf
		m, err := io.ReadFull(t.r, buf[read:])
		read += m
		return err
	})

	if err != nil {
		return nil, err
	}

	return buf, nil
}

// read runs fn with the read deadline armed. Timeouts are retried while
// waitForData is set.
func (t *TCP) read(fn func() error) error {
	if t.conn == nil {
		return t.connErr(ErrNotConnected)
	}

	for {
		if t.responseTimeout > 0 {
			if err := t.conn.SetReadDeadline(time.Now().Add(t.responseTimeout)); err != nil {
				return t.connErr(err)
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		if t.waitForData && isTimeout(err) {
			t.log.Debug("Still waiting for data", zap.String("addr", t.addr))
			continue
		}

		return t.connErr(err)
	}
}

func (t *TCP) connErr(err error) error {
	return &protocol.ConnectionError{Addr: t.addr, Err: err}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

var _ Transport = (*TCP)(nil)
