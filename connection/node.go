package connection

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/luma/disq/command"
	"github.com/luma/disq/protocol"
)

const (
	// ReplyOK is the only successful reply to AUTH
	ReplyOK = "OK"

	// DefaultPriority is the priority of a healthy node
	DefaultPriority = 1
)

// Node is a member of the cluster and, once connected, its connection.
//
// A Node starts unconnected, is connected once its transport is open, and is
// ready once HELLO has been answered and its id is known.
type Node struct {
	credentials Credentials
	conn        *Conn

	id       string
	prefix   string
	version  string
	priority int
	hello    *command.Hello

	// jobs attributed to this node since the last ResetJobCount
	jobCount int64
	// jobs attributed to this node since it was created
	totalJobCount int64

	log *zap.Logger
}

func NewNode(credentials Credentials, conn *Conn, log *zap.Logger) *Node {
	if log == nil {
		log = zap.NewNop()
	}

	return &Node{
		credentials: credentials,
		conn:        conn,
		priority:    DefaultPriority,
		log:         log,
	}
}

// newKnownNode builds a node announced by HELLO, it has no connection yet.
func newKnownNode(id string, priority int, credentials Credentials, log *zap.Logger) *Node {
	n := NewNode(credentials, nil, log)
	n.setID(id)
	n.priority = priority
	return n
}

func (n *Node) ID() string {
	return n.id
}

// Prefix is the first 8 characters of the node id, as embedded in job ids.
func (n *Node) Prefix() string {
	return n.prefix
}

func (n *Node) Version() string {
	return n.version
}

func (n *Node) Priority() int {
	return n.priority
}

func (n *Node) SetPriority(priority int) {
	n.priority = priority
}

func (n *Node) Credentials() Credentials {
	return n.credentials
}

func (n *Node) Conn() *Conn {
	return n.conn
}

// Hello returns the last HELLO reply, nil if the node is not ready.
func (n *Node) Hello() *command.Hello {
	return n.hello
}

func (n *Node) IsConnected() bool {
	return n.conn != nil && n.conn.IsConnected()
}

// Connect opens the connection, authenticates if a password is configured,
// and says HELLO. It returns the cached HELLO if the node is already ready.
func (n *Node) Connect() (*command.Hello, error) {
	if n.conn == nil {
		return nil, fmt.Errorf("Node %s has no connection: %w", n.credentials.Address(), ErrNotConnected)
	}

	if n.conn.IsConnected() && n.hello != nil {
		return n.hello, nil
	}

	if !n.conn.IsConnected() {
		if err := n.conn.Connect(); err != nil {
			return nil, err
		}
	}

	if n.credentials.HasPassword() {
		if err := n.authenticate(); err != nil {
			return nil, err
		}
	}

	hello, err := n.sayHello()
	if err != nil {
		return nil, err
	}

	// a node learnt from HELLO keeps its identity, whatever answers at its address
	if n.id != "" && hello.ID != n.id {
		_ = n.conn.Disconnect()
		return nil, fmt.Errorf("%w: expected node %s at %s, got %s",
			ErrInvalidHello, n.id, n.credentials.Address(), hello.ID)
	}

	n.setID(hello.ID)
	n.version = hello.Version
	n.hello = hello

	if self, ok := hello.Node(hello.ID); ok {
		n.priority = self.Priority()
	}

	n.log.Debug("Node ready",
		zap.String("server", n.credentials.Address()),
		zap.String("id", n.id),
		zap.String("version", n.version))

	return hello, nil
}

func (n *Node) Disconnect() error {
	n.hello = nil

	if n.conn == nil {
		return nil
	}

	return n.conn.Disconnect()
}

func (n *Node) Execute(cmd *command.Command) (interface{}, error) {
	if n.conn == nil {
		return nil, ErrNotConnected
	}

	return n.conn.Execute(cmd)
}

// AddJobCount attributes count more jobs to this node.
func (n *Node) AddJobCount(count int64) {
	n.jobCount += count
	n.totalJobCount += count
}

// ResetJobCount restarts the window of jobs used to compare node load. The
// total job count is left untouched.
func (n *Node) ResetJobCount() {
	n.jobCount = 0
}

func (n *Node) JobCount() int64 {
	return n.jobCount
}

func (n *Node) TotalJobCount() int64 {
	return n.totalJobCount
}

func (n *Node) String() string {
	if n.id == "" {
		return n.credentials.Address()
	}

	return fmt.Sprintf("%s (%s)", n.prefix, n.credentials.Address())
}

func (n *Node) setID(id string) {
	n.id = id
	n.prefix = command.NodePrefix(id)
}

func (n *Node) authenticate() error {
	cmd, err := command.NewAuth(n.credentials.Password)
	if err != nil {
		return err
	}

	result, err := n.conn.Execute(cmd)
	if err != nil {
		var serverErr *protocol.ServerError
		if errors.As(err, &serverErr) {
			return &AuthenticationError{Addr: n.credentials.Address(), Reason: serverErr.Message, Err: err}
		}

		return err
	}

	if result != ReplyOK {
		return &AuthenticationError{
			Addr:   n.credentials.Address(),
			Reason: fmt.Sprintf("unexpected reply %v", result),
		}
	}

	return nil
}

func (n *Node) sayHello() (*command.Hello, error) {
	cmd, err := command.NewHello()
	if err != nil {
		return nil, err
	}

	result, err := n.conn.Execute(cmd)
	if err != nil {
		var serverErr *protocol.ServerError
		if errors.As(err, &serverErr) && strings.HasPrefix(serverErr.Message, protocol.CodeNoAuth) {
			return nil, &AuthenticationError{
				Addr:   n.credentials.Address(),
				Reason: "the server requires a password",
				Err:    err,
			}
		}

		return nil, err
	}

	return result.(*command.Hello), nil
}
