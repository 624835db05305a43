package transport

import (
	"time"

	"github.com/luma/disq/protocol"
)

// Transport is a blocking stream connection to a single server.
//
// Every failure of the stream is returned as a *protocol.ConnectionError.
type Transport interface {
	protocol.Reader

	// Connect opens the connection. A zero connectTimeout waits for the
	// operating system to give up, a zero responseTimeout never times out reads.
	Connect(connectTimeout, responseTimeout time.Duration) error

	Disconnect() error

	IsConnected() bool

	// Write writes all of data or returns an error.
	Write(data []byte) error

	// WaitForData controls read timeouts. While enabled a read that times out
	// keeps waiting instead of failing, for commands that legitimately block
	// on the server.
	WaitForData(wait bool)

	Addr() string
}

// Factory builds unconnected transports.
type Factory func(host string, port int) Transport
