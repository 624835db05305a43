package disquetest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Peer is another node announced in the HELLO reply.
type Peer struct {
	ID       string
	Host     string
	Port     int
	Priority int
}

type Options struct {
	// Host defaults to 127.0.0.1
	Host string

	// Port defaults to a free port
	Port int

	// NodeID defaults to a random 40 character id
	NodeID string

	// Password makes clients AUTH before anything else
	Password string

	// Priority is announced in HELLO, defaults to 1
	Priority int

	Peers []Peer

	Log *zap.Logger
}

// Server is a single Disque node listening on TCP.
type Server struct {
	ctx        context.Context
	cancel     context.CancelFunc
	loopWaiter sync.WaitGroup

	options  Options
	nodeID   string
	listener net.Listener
	store    *Store

	mu          sync.Mutex
	activeConns map[*serverConn]struct{}

	log *zap.Logger
}

func NewServer(options Options) *Server {
	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	if options.Host == "" {
		options.Host = "127.0.0.1"
	}

	if options.Priority == 0 {
		options.Priority = 1
	}

	nodeID := options.NodeID
	if nodeID == "" {
		nodeID = NewNodeID()
	}

	return &Server{
		options:     options,
		nodeID:      nodeID,
		store:       NewStore(nodePrefix(nodeID)),
		activeConns: make(map[*serverConn]struct{}),
		log:         options.Log,
	}
}

// Start creates a server for options and starts it.
func Start(ctx context.Context, options Options) (*Server, error) {
	s := NewServer(options)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// NewNodeID returns a random node id.
func NewNodeID() string {
	seed := strconv.FormatInt(time.Now().UnixNano(), 10)
	a := xxhash.Sum64String(seed)
	b := xxhash.Sum64String(seed + "/" + strconv.FormatUint(a, 16))

	return fmt.Sprintf("%016x%016x%08x", a, b, uint32(a^b))
}

// nodePrefix returns the part of a node id Disque embeds in job ids.
func nodePrefix(nodeID string) string {
	if len(nodeID) < 8 {
		return nodeID
	}

	return nodeID[:8]
}

func (s *Server) Start(parentCtx context.Context) error {
	listener, err := reuseport.Listen("tcp", net.JoinHostPort(s.options.Host, strconv.Itoa(s.options.Port)))
	if err != nil {
		return err
	}

	s.ctx, s.cancel = context.WithCancel(parentCtx)
	s.listener = listener

	s.log.Info("Listening",
		zap.String("addr", s.Addr()),
		zap.String("node", s.nodeID))

	s.loopWaiter.Add(1)
	go func() {
		defer s.loopWaiter.Done()

		if err := s.acceptLoop(); err != nil {
			s.log.Error("Failed to accept", zap.Error(err))
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = s.listener.Close()
	}()

	return nil
}

func (s *Server) acceptLoop() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				// The listener was closed while we were waiting for new
				// connections, that's fine.
				return nil
			}

			return err
		}

		c := newServerConn(s.ctx, s, conn, s.log.Named("conn"))
		s.addConn(c)

		s.loopWaiter.Add(1)
		go func() {
			defer s.loopWaiter.Done()
			defer s.removeConn(c)

			c.serve()
		}()
	}
}

// Close immediately closes the listener and every connection.
func (s *Server) Close() (err error) {
	if s.cancel == nil {
		return s.store.Close()
	}

	s.cancel()

	if cerr := s.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = multierr.Append(err, cerr)
	}

	s.mu.Lock()
	for c := range s.activeConns {
		if cerr := c.Close(); cerr != nil {
			err = multierr.Append(err, cerr)
		}
	}
	s.mu.Unlock()

	s.loopWaiter.Wait()

	return multierr.Append(err, s.store.Close())
}

func (s *Server) NodeID() string {
	return s.nodeID
}

func (s *Server) Store() *Store {
	return s.store
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	if s.listener == nil {
		return net.JoinHostPort(s.options.Host, strconv.Itoa(s.options.Port))
	}

	return s.listener.Addr().String()
}

func (s *Server) Host() string {
	return s.options.Host
}

func (s *Server) Port() int {
	if tcpAddr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return tcpAddr.Port
	}

	_, port, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

// Peer describes this server as a peer of another one.
func (s *Server) Peer() Peer {
	return Peer{ID: s.nodeID, Host: s.Host(), Port: s.Port(), Priority: s.options.Priority}
}

// AddPeer announces p in later HELLO replies.
func (s *Server) AddPeer(p Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.options.Peers = append(s.options.Peers, p)
}

// SetPriority changes the priority this node announces for itself.
func (s *Server) SetPriority(priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.options.Priority = priority
}

// ConnCount returns the number of open client connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.activeConns)
}

func (s *Server) nodes() []Peer {
	s.mu.Lock()
	defer s.mu.Unlock()

	self := Peer{ID: s.nodeID, Host: s.Host(), Port: s.Port(), Priority: s.options.Priority}

	nodes := make([]Peer, 0, len(s.options.Peers)+1)
	nodes = append(nodes, self)
	return append(nodes, s.options.Peers...)
}

func (s *Server) addConn(c *serverConn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeConns[c] = struct{}{}
}

func (s *Server) removeConn(c *serverConn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.activeConns, c)
}
