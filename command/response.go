package command

import (
	"fmt"
	"strconv"

	"github.com/luma/disq/protocol"
)

const (
	// labels of the counters in GETJOB ... WITHCOUNTERS job tuples
	LabelNacks                = "nacks"
	LabelAdditionalDeliveries = "additional-deliveries"

	// length of the node id prefix embedded in job ids
	NodePrefixLength = 8
)

// Job is a job as returned by GETJOB and QPEEK.
type Job struct {
	Queue string
	ID    string
	Body  string

	// Only set for GETJOB ... WITHCOUNTERS
	Nacks                int64
	AdditionalDeliveries int64
}

// NodePrefix returns the prefix of the node that created the job. Disque job
// ids look like D-<node prefix>-<random>-<ttl>.
func (j Job) NodePrefix() (string, bool) {
	return JobNodePrefix(j.ID)
}

func JobNodePrefix(id string) (string, bool) {
	if len(id) < 2+NodePrefixLength || id[:2] != "D-" {
		return "", false
	}

	return id[2 : 2+NodePrefixLength], true
}

// NodePrefix returns the first characters of a node id, the same characters
// Disque embeds in the ids of the jobs that node creates.
func NodePrefix(nodeID string) string {
	if len(nodeID) < NodePrefixLength {
		return nodeID
	}

	return nodeID[:NodePrefixLength]
}

// JobLayout describes the fields of a job tuple.
type JobLayout struct {
	WithQueue    bool
	WithCounters bool
}

func (l JobLayout) arity() int {
	n := 2
	if l.WithQueue {
		n++
	}
	if l.WithCounters {
		n += 4
	}

	return n
}

// CursorPage is a page of QSCAN or JSCAN results. Finished is set once the
// server returns cursor 0.
type CursorPage struct {
	Finished   bool
	NextCursor int64

	// Queue names for QSCAN, job ids for JSCAN
	Items []string

	// Job details for JSCAN ... REPLY all
	Jobs []KeyValues
}

type KeyValue struct {
	Key   string
	Value interface{}
}

// KeyValues is a flat key/value reply (SHOW, QSTAT) in the order the server
// sent it.
type KeyValues []KeyValue

func (kv KeyValues) Get(key string) (interface{}, bool) {
	for _, pair := range kv {
		if pair.Key == key {
			return pair.Value, true
		}
	}

	return nil, false
}

func (kv KeyValues) String(key string) (string, bool) {
	v, ok := kv.Get(key)
	if !ok {
		return "", false
	}

	s, ok := v.(string)
	return s, ok
}

func (kv KeyValues) Int(key string) (int64, bool) {
	v, ok := kv.Get(key)
	if !ok {
		return 0, false
	}

	switch n := v.(type) {
	case int64:
		return n, true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func (kv KeyValues) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(kv))
	for _, pair := range kv {
		m[pair.Key] = pair.Value
	}

	return m
}

// Hello is the reply to HELLO.
type Hello struct {
	Version string
	ID      string
	Nodes   []HelloNode
}

type HelloNode struct {
	ID   string
	Host string
	Port string

	// Version is the fourth field of the node tuple. Disque reports the node
	// priority there: 1 when healthy, 10 on possible failure, 100 on failure.
	Version string
}

func (n HelloNode) PortNumber() (int, error) {
	return strconv.Atoi(n.Port)
}

// Priority returns the node priority, 1 if it is not numeric.
func (n HelloNode) Priority() int {
	p, err := strconv.Atoi(n.Version)
	if err != nil {
		return 1
	}

	return p
}

// Node returns the node with the provided id.
func (h *Hello) Node(id string) (HelloNode, bool) {
	for _, node := range h.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return HelloNode{}, false
}

func invalidResponse(cmd *Command, reply protocol.Reply, format string, args ...interface{}) error {
	return &InvalidResponseError{
		Command: cmd.Name(),
		Reason:  fmt.Sprintf(format, args...),
		Body:    reply.String(),
	}
}

func parseString(cmd *Command, reply protocol.Reply) (interface{}, error) {
	if reply.Kind != protocol.KindString {
		return nil, invalidResponse(cmd, reply, "expected a string")
	}

	return reply.Str, nil
}

// parseOptionalString maps a nil reply to a nil result.
func parseOptionalString(cmd *Command, reply protocol.Reply) (interface{}, error) {
	if reply.IsNil() {
		return nil, nil
	}

	return parseString(cmd, reply)
}

func parseInteger(cmd *Command, reply protocol.Reply) (interface{}, error) {
	if reply.Kind != protocol.KindInteger {
		return nil, invalidResponse(cmd, reply, "expected an integer")
	}

	return reply.Int, nil
}

func parseJobsWithQueue(cmd *Command, reply protocol.Reply) (interface{}, error) {
	layout := JobLayout{WithQueue: true, WithCounters: cmd.opts.Bool("withcounters")}
	return ParseJobs(cmd, reply, layout)
}

// ParseJobs parses a list of job tuples. A nil reply, sent when a blocking
// fetch timed out, is an empty list.
func ParseJobs(cmd *Command, reply protocol.Reply, layout JobLayout) ([]Job, error) {
	if reply.IsNil() {
		return []Job{}, nil
	}

	if reply.Kind != protocol.KindArray {
		return nil, invalidResponse(cmd, reply, "expected a list of jobs")
	}

	jobs := make([]Job, 0, len(reply.Array))

	for _, tuple := range reply.Array {
		if tuple.Kind != protocol.KindArray || len(tuple.Array) != layout.arity() {
			return nil, invalidResponse(cmd, reply, "expected jobs of %d fields", layout.arity())
		}

		fields := make([]string, 0, 3)
		for _, elem := range tuple.Array[:layout.arity()-countersArity(layout)] {
			if elem.Kind != protocol.KindString {
				return nil, invalidResponse(cmd, reply, "expected job fields to be strings")
			}
			fields = append(fields, elem.Str)
		}

		var job Job
		if layout.WithQueue {
			job.Queue, fields = fields[0], fields[1:]
		}
		job.ID, job.Body = fields[0], fields[1]

		if job.ID == "" {
			return nil, invalidResponse(cmd, reply, "expected a job id")
		}

		if layout.WithCounters {
			counters := tuple.Array[len(tuple.Array)-4:]

			nacks, ok := counter(counters[0], counters[1], LabelNacks)
			if !ok {
				return nil, invalidResponse(cmd, reply, "expected a %q counter", LabelNacks)
			}

			deliveries, ok := counter(counters[2], counters[3], LabelAdditionalDeliveries)
			if !ok {
				return nil, invalidResponse(cmd, reply, "expected a %q counter", LabelAdditionalDeliveries)
			}

			job.Nacks, job.AdditionalDeliveries = nacks, deliveries
		}

		jobs = append(jobs, job)
	}

	return jobs, nil
}

func countersArity(layout JobLayout) int {
	if layout.WithCounters {
		return 4
	}

	return 0
}

// counter checks that label holds the expected literal and returns value as
// an integer.
func counter(label, value protocol.Reply, expected string) (int64, bool) {
	if label.Kind != protocol.KindString || label.Str != expected {
		return 0, false
	}

	s, ok := value.Scalar()
	if !ok {
		return 0, false
	}

	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

func parseQueueCursor(cmd *Command, reply protocol.Reply) (interface{}, error) {
	return parseCursor(cmd, reply, false)
}

func parseJobCursor(cmd *Command, reply protocol.Reply) (interface{}, error) {
	return parseCursor(cmd, reply, cmd.opts["reply"] == "all")
}

// parseCursor parses [cursor, [items...]] replies.
func parseCursor(cmd *Command, reply protocol.Reply, details bool) (*CursorPage, error) {
	if reply.Kind != protocol.KindArray || len(reply.Array) != 2 {
		return nil, invalidResponse(cmd, reply, "expected a cursor and a list of items")
	}

	rawCursor, ok := reply.Array[0].Scalar()
	if !ok {
		return nil, invalidResponse(cmd, reply, "expected a cursor")
	}

	cursor, err := strconv.ParseInt(rawCursor, 10, 64)
	if err != nil {
		return nil, invalidResponse(cmd, reply, "expected a numeric cursor")
	}

	items := reply.Array[1]
	if items.Kind != protocol.KindArray {
		return nil, invalidResponse(cmd, reply, "expected a list of items")
	}

	page := &CursorPage{
		Finished:   cursor == 0,
		NextCursor: cursor,
		Items:      make([]string, 0, len(items.Array)),
	}

	for _, item := range items.Array {
		if details {
			kv, err := parseKeyValueList(cmd, item)
			if err != nil {
				return nil, err
			}

			page.Jobs = append(page.Jobs, kv)

			if id, ok := kv.String("id"); ok {
				page.Items = append(page.Items, id)
			}

			continue
		}

		if item.Kind != protocol.KindString {
			return nil, invalidResponse(cmd, reply, "expected items to be strings")
		}

		page.Items = append(page.Items, item.Str)
	}

	return page, nil
}

// parseKeyValues maps a nil reply to a nil result.
func parseKeyValues(cmd *Command, reply protocol.Reply) (interface{}, error) {
	if reply.IsNil() {
		return nil, nil
	}

	return parseKeyValueList(cmd, reply)
}

func parseKeyValueList(cmd *Command, reply protocol.Reply) (KeyValues, error) {
	if reply.Kind != protocol.KindArray || len(reply.Array)%2 != 0 {
		return nil, invalidResponse(cmd, reply, "expected a list of keys and values")
	}

	kv := make(KeyValues, 0, len(reply.Array)/2)

	for i := 0; i < len(reply.Array); i += 2 {
		key := reply.Array[i]
		if key.Kind != protocol.KindString {
			return nil, invalidResponse(cmd, reply, "expected keys to be strings")
		}

		kv = append(kv, KeyValue{Key: key.Str, Value: reply.Array[i+1].Value()})
	}

	return kv, nil
}

// parseHello parses [version, id, [id, host, port, version]...].
func parseHello(cmd *Command, reply protocol.Reply) (interface{}, error) {
	if reply.Kind != protocol.KindArray || len(reply.Array) < 3 {
		return nil, invalidResponse(cmd, reply, "expected a version, a node id and nodes")
	}

	version, ok := reply.Array[0].Scalar()
	if !ok {
		return nil, invalidResponse(cmd, reply, "expected a version")
	}

	id, ok := reply.Array[1].Scalar()
	if !ok {
		return nil, invalidResponse(cmd, reply, "expected a node id")
	}

	hello := &Hello{
		Version: version,
		ID:      id,
		Nodes:   make([]HelloNode, 0, len(reply.Array)-2),
	}

	for _, tuple := range reply.Array[2:] {
		if tuple.Kind != protocol.KindArray || len(tuple.Array) != 4 {
			return nil, invalidResponse(cmd, reply, "expected nodes of 4 fields")
		}

		fields := make([]string, 0, 4)
		for _, elem := range tuple.Array {
			s, ok := elem.Scalar()
			if !ok {
				return nil, invalidResponse(cmd, reply, "expected node fields to be strings")
			}
			fields = append(fields, s)
		}

		hello.Nodes = append(hello.Nodes, HelloNode{
			ID:      fields[0],
			Host:    fields[1],
			Port:    fields[2],
			Version: fields[3],
		})
	}

	return hello, nil
}
