package disquetest

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/luma/disq/protocol"
)

var errProtocol = errors.New("ERR Protocol error: expected an array of bulk strings")

// response is what a handler replies with. Status replies are written as
// simple strings, everything else through protocol.AppendReply.
type response struct {
	reply  protocol.Reply
	status string
}

func status(s string) response {
	return response{status: s}
}

func reply(r protocol.Reply) response {
	return response{reply: r}
}

type serverConn struct {
	ctx    context.Context
	cancel context.CancelFunc

	server *Server
	conn   net.Conn
	reader *protocol.StreamReader
	writer *bufio.Writer

	closeOnce sync.Once
	authed    bool

	log *zap.Logger
}

func newServerConn(parentCtx context.Context, server *Server, conn net.Conn, log *zap.Logger) *serverConn {
	ctx, cancel := context.WithCancel(parentCtx)

	return &serverConn{
		ctx:    ctx,
		cancel: cancel,
		server: server,
		conn:   conn,
		reader: protocol.NewStreamReader(conn),
		writer: bufio.NewWriter(conn),
		log:    log.With(zap.String("remote", conn.RemoteAddr().String())),
	}
}

func (c *serverConn) Close() (err error) {
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})

	return err
}

func (c *serverConn) serve() {
	defer func() {
		if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.log.Warn("Connection did not close cleanly", zap.Error(err))
		}
	}()

	for {
		req, err := protocol.ReadReply(c.reader)
		if err != nil {
			if !isClosed(err) {
				c.log.Warn("Failed to read client request", zap.Error(err))
			}
			return
		}

		args, ok := requestArgs(req)
		if !ok {
			if err := c.writeError(errProtocol); err != nil {
				return
			}
			continue
		}

		resp, err := c.dispatch(args)
		if err != nil {
			err = c.writeError(err)
		} else {
			err = c.write(resp)
		}

		if err != nil {
			if !isClosed(err) {
				c.log.Warn("Failed to write reply",
					zap.String("command", args[0]),
					zap.Error(err))
			}
			return
		}
	}
}

func (c *serverConn) dispatch(args []string) (response, error) {
	name := strings.ToUpper(args[0])

	h, ok := handlers[name]
	if !ok {
		return response{}, errors.New("ERR unknown command '" + args[0] + "'")
	}

	if c.server.options.Password != "" && !c.authed && name != "AUTH" && name != "PING" {
		return response{}, errors.New("NOAUTH Authentication required.")
	}

	return h(c, args[1:])
}

func (c *serverConn) write(resp response) error {
	if resp.status != "" {
		if err := protocol.WriteStatus(c.writer, resp.status); err != nil {
			return err
		}
	} else if err := protocol.WriteReply(c.writer, resp.reply); err != nil {
		return err
	}

	return c.writer.Flush()
}

func (c *serverConn) writeError(err error) error {
	if werr := protocol.WriteError(c.writer, err.Error()); werr != nil {
		return werr
	}

	return c.writer.Flush()
}

// requestArgs returns the command and arguments of a request, which clients
// send as an array of bulk strings.
func requestArgs(req protocol.Reply) ([]string, bool) {
	if req.Kind != protocol.KindArray || len(req.Array) == 0 {
		return nil, false
	}

	args := make([]string, 0, len(req.Array))
	for _, elem := range req.Array {
		if elem.Kind != protocol.KindString {
			return nil, false
		}
		args = append(args, elem.Str)
	}

	return args, true
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}
