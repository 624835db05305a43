package command

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/luma/disq/protocol"
)

type Name string

const (
	ADDJOB  Name = "ADDJOB"
	GETJOB  Name = "GETJOB"
	ACKJOB  Name = "ACKJOB"
	FASTACK Name = "FASTACK"
	DELJOB  Name = "DELJOB"
	NACK    Name = "NACK"
	WORKING Name = "WORKING"
	ENQUEUE Name = "ENQUEUE"
	DEQUEUE Name = "DEQUEUE"
	QLEN    Name = "QLEN"
	QPEEK   Name = "QPEEK"
	QSCAN   Name = "QSCAN"
	JSCAN   Name = "JSCAN"
	QSTAT   Name = "QSTAT"
	PAUSE   Name = "PAUSE"
	SHOW    Name = "SHOW"
	HELLO   Name = "HELLO"
	AUTH    Name = "AUTH"
	INFO    Name = "INFO"
)

// ParseFunc converts a decoded reply into the result of cmd.
type ParseFunc func(cmd *Command, reply protocol.Reply) (interface{}, error)

// Descriptor describes a server command: which arguments and options it
// accepts, how they are laid out on the wire and how its reply is parsed.
// Descriptors are immutable, each invocation builds a new Command.
type Descriptor struct {
	Name Name

	Arguments ArgumentsFunc

	// Options in the order they are emitted.
	Options []OptionSpec

	// OptionsFirst emits the options before the positional arguments, which
	// are then prefixed by ArgumentsKeyword if set (GETJOB ... FROM q1 q2).
	OptionsFirst     bool
	ArgumentsKeyword string

	// Blocking reports whether the server may hold the reply until a job is
	// available. Nil means never.
	Blocking func(opts Options) bool

	Parse ParseFunc
}

// New validates args and opts and builds a command ready to be sent.
func (d *Descriptor) New(args []interface{}, opts Options) (*Command, error) {
	positional, err := d.Arguments(args)
	if err != nil {
		return nil, &InvalidArgumentError{Command: d.Name, Reason: err.Error(), Args: args}
	}

	options, err := buildOptions(d.Name, d.Options, opts)
	if err != nil {
		return nil, err
	}

	wire := make([]string, 0, len(positional)+len(options)+1)
	if d.OptionsFirst {
		wire = append(wire, options...)
		if d.ArgumentsKeyword != "" {
			wire = append(wire, d.ArgumentsKeyword)
		}
		wire = append(wire, positional...)
	} else {
		wire = append(wire, positional...)
		wire = append(wire, options...)
	}

	copied := make(Options, len(opts))
	for k, v := range opts {
		copied[k] = v
	}

	return &Command{
		descriptor: d,
		args:       wire,
		opts:       copied,
		blocking:   d.Blocking != nil && d.Blocking(copied),
	}, nil
}

// Command is a single, validated invocation of a server command.
type Command struct {
	descriptor *Descriptor
	args       []string
	opts       Options
	blocking   bool
}

func (c *Command) Name() Name {
	return c.descriptor.Name
}

// Arguments returns the wire arguments, without the command name.
func (c *Command) Arguments() []string {
	args := make([]string, len(c.args))
	copy(args, c.args)
	return args
}

// Option returns the value the command was built with for the named option.
func (c *Command) Option(name string) interface{} {
	return c.opts[name]
}

func (c *Command) IsBlocking() bool {
	return c.blocking
}

func (c *Command) Encode() []byte {
	return protocol.EncodeCommand(string(c.descriptor.Name), c.args)
}

func (c *Command) Parse(reply protocol.Reply) (interface{}, error) {
	return c.descriptor.Parse(c, reply)
}

func (c *Command) String() string {
	return strings.Join(append([]string{string(c.descriptor.Name)}, c.args...), " ")
}

// Registry maps command names to their descriptors.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[Name]*Descriptor
}

// NewRegistry returns a registry holding every built-in command.
func NewRegistry() *Registry {
	r := &Registry{descriptors: make(map[Name]*Descriptor, len(builtins))}
	for _, d := range builtins {
		r.descriptors[d.Name] = d
	}

	return r
}

// Register adds or replaces a descriptor.
func (r *Registry) Register(d *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.descriptors[normalize(d.Name)] = d
}

func (r *Registry) Lookup(name Name) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.descriptors[normalize(name)]
	return d, ok
}

// New builds a command by name. Unknown names fail with ErrInvalidCommand.
func (r *Registry) New(name Name, args []interface{}, opts Options) (*Command, error) {
	d, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCommand, name)
	}

	return d.New(args, opts)
}

func (r *Registry) Names() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]Name, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func normalize(name Name) Name {
	return Name(strings.ToUpper(string(name)))
}
