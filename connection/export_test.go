package connection

// NewTestNode builds a node with a known id, priority and job window.
func NewTestNode(id string, priority int, jobs int64) *Node {
	n := newKnownNode(id, priority, Credentials{Host: "127.0.0.1", Port: DefaultPort}, nil)
	n.AddJobCount(jobs)
	return n
}
