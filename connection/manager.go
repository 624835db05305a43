package connection

import (
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/disq/command"
	"github.com/luma/disq/protocol"
	"github.com/luma/disq/transport"
)

type Options struct {
	// Servers are the candidates to connect to. Once connected, the rest of
	// the cluster is discovered from HELLO.
	Servers []Credentials

	// Transport builds the transport of each node. Defaults to TCP.
	Transport transport.Factory

	// Prioritizer decides which node to prefer. Defaults to a
	// ConservativeJobCountPrioritizer.
	Prioritizer Prioritizer

	// MinimumJobsToChangeNode is how many jobs must be fetched before the
	// prioritizer is consulted. Zero never switches nodes.
	MinimumJobsToChangeNode int64

	// Rand picks the order in which servers are tried.
	Rand rand.Source

	Log *zap.Logger
}

// Manager keeps a connection to one node of a Disque cluster.
//
// Connect tries the servers in random order until one answers HELLO, and
// builds the node table from that reply. Commands are executed on the
// current node. Manager is not safe for concurrent use, use one per
// goroutine.
type Manager struct {
	servers     []Credentials
	factory     transport.Factory
	prioritizer Prioritizer
	minJobs     int64
	rand        *rand.Rand

	nodes  map[string]*Node
	order  []string
	nodeID string

	log *zap.Logger
}

func NewManager(options Options) *Manager {
	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	factory := options.Transport
	if factory == nil {
		factory = transport.TCPFactory(log.Named("transport"))
	}

	prioritizer := options.Prioritizer
	if prioritizer == nil {
		prioritizer = NewConservativeJobCountPrioritizer()
	}

	source := options.Rand
	if source == nil {
		source = rand.NewSource(time.Now().UnixNano())
	}

	servers := make([]Credentials, len(options.Servers))
	copy(servers, options.Servers)

	return &Manager{
		servers:     servers,
		factory:     factory,
		prioritizer: prioritizer,
		minJobs:     options.MinimumJobsToChangeNode,
		rand:        rand.New(source),
		nodes:       make(map[string]*Node),
		log:         log,
	}
}

func (m *Manager) AddServer(credentials Credentials) {
	m.servers = append(m.servers, credentials)
}

func (m *Manager) Servers() []Credentials {
	servers := make([]Credentials, len(m.servers))
	copy(servers, m.servers)
	return servers
}

func (m *Manager) SetPrioritizer(prioritizer Prioritizer) {
	m.prioritizer = prioritizer
}

func (m *Manager) SetMinimumJobsToChangeNode(count int64) {
	m.minJobs = count
}

// Connect connects to one of the servers and discovers the cluster. It
// returns the HELLO of the node it connected to. Servers that cannot be
// reached are skipped, any other failure is returned straight away.
func (m *Manager) Connect() (*command.Hello, error) {
	if node := m.CurrentNode(); node != nil && node.IsConnected() && node.Hello() != nil {
		return node.Hello(), nil
	}

	if len(m.servers) == 0 {
		return nil, fmt.Errorf("%w: no servers configured", ErrNoServers)
	}

	candidates := m.Servers()
	var errs error

	for len(candidates) > 0 {
		i := m.rand.Intn(len(candidates))
		credentials := candidates[i]
		candidates = append(candidates[:i], candidates[i+1:]...)

		node := m.newNode(credentials)

		hello, err := node.Connect()
		if err != nil {
			_ = node.Disconnect()

			if !isConnectionFailure(err) {
				return nil, err
			}

			m.log.Warn("Failed to connect",
				zap.String("server", credentials.Address()),
				zap.Error(err))

			errs = multierr.Append(errs, err)
			continue
		}

		if err := m.setNodes(node, hello); err != nil {
			_ = node.Disconnect()
			return nil, err
		}

		m.log.Info("Connected",
			zap.String("server", credentials.Address()),
			zap.String("node", hello.ID),
			zap.Int("nodes", len(hello.Nodes)))

		return hello, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrNoServers, errs)
}

func (m *Manager) Disconnect() error {
	node := m.CurrentNode()
	if node == nil {
		return nil
	}

	m.nodeID = ""
	return node.Disconnect()
}

func (m *Manager) IsConnected() bool {
	node := m.CurrentNode()
	return node != nil && node.IsConnected()
}

// CurrentNode returns the node commands are executed on, nil before Connect.
func (m *Manager) CurrentNode() *Node {
	if m.nodeID == "" {
		return nil
	}

	return m.nodes[m.nodeID]
}

// Nodes returns the nodes of the cluster in the order HELLO listed them.
func (m *Manager) Nodes() []*Node {
	nodes := make([]*Node, 0, len(m.order))
	for _, id := range m.order {
		nodes = append(nodes, m.nodes[id])
	}

	return nodes
}

// Execute executes cmd on the current node. Connection failures are returned
// to the caller, the command is not retried on another node.
func (m *Manager) Execute(cmd *command.Command) (interface{}, error) {
	node := m.CurrentNode()
	if node == nil || !node.IsConnected() {
		return nil, ErrNotConnected
	}

	result, err := node.Execute(cmd)
	if err != nil {
		return nil, err
	}

	if cmd.Name() == command.GETJOB {
		if jobs, ok := result.([]command.Job); ok && len(jobs) > 0 {
			m.attributeJobs(jobs)
			m.SwitchNodeIfNeeded()
		}
	}

	return result, nil
}

// SwitchNodeIfNeeded asks the prioritizer for the preferred node, once enough
// jobs have been fetched, and moves to it. It reports whether it switched.
// When the preferred node cannot be reached the next one is tried, up to the
// current node.
func (m *Manager) SwitchNodeIfNeeded() bool {
	if m.minJobs <= 0 || m.windowJobCount() < m.minJobs {
		return false
	}

	for _, candidate := range m.prioritizer.Sort(m.Nodes(), m.nodeID) {
		if candidate.ID() == m.nodeID {
			return false
		}

		if err := m.switchTo(candidate); err != nil {
			m.log.Warn("Failed to switch node",
				zap.String("node", candidate.ID()),
				zap.String("server", candidate.Credentials().Address()),
				zap.Error(err))
			continue
		}

		return true
	}

	return false
}

func (m *Manager) switchTo(node *Node) error {
	if node.conn == nil {
		node.conn = m.newConn(node.Credentials())
	}

	if _, err := node.Connect(); err != nil {
		_ = node.Disconnect()
		return err
	}

	from := ""
	if previous := m.CurrentNode(); previous != nil {
		from = previous.ID()
		if err := previous.Disconnect(); err != nil {
			m.log.Debug("Failed to disconnect from previous node", zap.Error(err))
		}
	}

	// job counts are relative to the node we were on, start over
	for _, n := range m.nodes {
		n.ResetJobCount()
	}

	m.nodeID = node.ID()

	m.log.Info("Switched node",
		zap.String("from", from),
		zap.String("to", node.ID()))

	return nil
}

func (m *Manager) attributeJobs(jobs []command.Job) {
	for _, job := range jobs {
		prefix, ok := job.NodePrefix()
		if !ok {
			continue
		}

		if node := m.nodeByPrefix(prefix); node != nil {
			node.AddJobCount(1)
		}
	}
}

func (m *Manager) nodeByPrefix(prefix string) *Node {
	for _, id := range m.order {
		if node := m.nodes[id]; node.Prefix() == prefix {
			return node
		}
	}

	return nil
}

func (m *Manager) windowJobCount() int64 {
	var count int64
	for _, node := range m.nodes {
		count += node.JobCount()
	}

	return count
}

// setNodes builds the node table from the HELLO of the node just connected.
func (m *Manager) setNodes(connected *Node, hello *command.Hello) error {
	if hello.ID == "" || len(hello.Nodes) == 0 {
		return fmt.Errorf("%w: missing node id or nodes", ErrInvalidHello)
	}

	nodes := make(map[string]*Node, len(hello.Nodes))
	order := make([]string, 0, len(hello.Nodes))

	for _, announced := range hello.Nodes {
		port, err := announced.PortNumber()
		if err != nil {
			return fmt.Errorf("%w: node %s has port '%s'", ErrInvalidHello, announced.ID, announced.Port)
		}

		if _, ok := nodes[announced.ID]; ok {
			continue
		}

		if announced.ID == hello.ID {
			connected.SetPriority(announced.Priority())
			nodes[announced.ID] = connected
		} else {
			credentials := connected.Credentials().WithAddress(announced.Host, port)
			nodes[announced.ID] = newKnownNode(announced.ID, announced.Priority(), credentials, m.log.Named("node"))
		}

		order = append(order, announced.ID)
	}

	if _, ok := nodes[hello.ID]; !ok {
		return fmt.Errorf("%w: node %s is not part of its own cluster", ErrInvalidHello, hello.ID)
	}

	for _, previous := range m.nodes {
		if previous != connected {
			_ = previous.Disconnect()
		}
	}

	m.nodes = nodes
	m.order = order
	m.nodeID = hello.ID

	return nil
}

func (m *Manager) newNode(credentials Credentials) *Node {
	return NewNode(credentials, m.newConn(credentials), m.log.Named("node"))
}

func (m *Manager) newConn(credentials Credentials) *Conn {
	t := m.factory(credentials.Host, credentials.Port)
	return NewConn(credentials, t, m.log.Named("conn"))
}

// isConnectionFailure reports whether err means the server could not be
// reached, as opposed to a server that answered wrongly.
func isConnectionFailure(err error) bool {
	return protocol.IsConnectionError(err)
}
