package connection

import (
	"errors"

	"go.uber.org/zap"

	"github.com/luma/disq/command"
	"github.com/luma/disq/protocol"
	"github.com/luma/disq/transport"
)

// Conn executes commands over a single transport, one request/response round
// trip at a time. It is not safe for concurrent use.
type Conn struct {
	credentials Credentials
	transport   transport.Transport

	log *zap.Logger
}

func NewConn(credentials Credentials, t transport.Transport, log *zap.Logger) *Conn {
	if log == nil {
		log = zap.NewNop()
	}

	return &Conn{
		credentials: credentials,
		transport:   t,
		log:         log.With(zap.String("server", credentials.Address())),
	}
}

func (c *Conn) Credentials() Credentials {
	return c.credentials
}

func (c *Conn) Connect() error {
	return c.transport.Connect(c.credentials.ConnectTimeout, c.credentials.ResponseTimeout)
}

func (c *Conn) Disconnect() error {
	return c.transport.Disconnect()
}

func (c *Conn) IsConnected() bool {
	return c.transport.IsConnected()
}

// Execute sends cmd and parses its reply. Error replies are returned as
// *protocol.ServerError, stream failures as *protocol.ConnectionError.
func (c *Conn) Execute(cmd *command.Command) (interface{}, error) {
	reply, err := c.Send(cmd)
	if err != nil {
		return nil, err
	}

	return cmd.Parse(reply)
}

// Send sends cmd and returns its raw reply.
func (c *Conn) Send(cmd *command.Command) (protocol.Reply, error) {
	if !c.transport.IsConnected() {
		return protocol.Reply{}, ErrNotConnected
	}

	if err := c.transport.Write(cmd.Encode()); err != nil {
		c.drop(cmd, err)
		return protocol.Reply{}, err
	}

	if cmd.IsBlocking() {
		c.transport.WaitForData(true)
		defer c.transport.WaitForData(false)
	}

	reply, err := protocol.ReadReply(c.transport)
	if err != nil {
		var serverErr *protocol.ServerError
		if !errors.As(err, &serverErr) {
			c.drop(cmd, err)
		}

		return protocol.Reply{}, err
	}

	return reply, nil
}

// drop closes a connection whose stream can no longer be trusted to be at a
// reply boundary.
func (c *Conn) drop(cmd *command.Command, err error) {
	c.log.Debug("Dropping connection",
		zap.String("command", string(cmd.Name())),
		zap.Error(err))

	if derr := c.transport.Disconnect(); derr != nil {
		c.log.Debug("Failed to disconnect cleanly", zap.Error(derr))
	}
}
