package disquetest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/luma/disq/protocol"
)

type handler func(c *serverConn, args []string) (response, error)

var handlers map[string]handler

func init() {
	handlers = map[string]handler{
		"PING":    handlePing,
		"HELLO":   handleHello,
		"AUTH":    handleAuth,
		"INFO":    handleInfo,
		"ADDJOB":  handleAddJob,
		"GETJOB":  handleGetJob,
		"ACKJOB":  jobIDsHandler((*Store).Ack),
		"FASTACK": jobIDsHandler((*Store).Ack),
		"DELJOB":  jobIDsHandler((*Store).Delete),
		"NACK":    jobIDsHandler((*Store).Nack),
		"ENQUEUE": jobIDsHandler((*Store).Enqueue),
		"DEQUEUE": jobIDsHandler((*Store).Dequeue),
		"WORKING": handleWorking,
		"QLEN":    handleQLen,
		"QPEEK":   handleQPeek,
		"QSTAT":   handleQStat,
		"QSCAN":   handleQScan,
		"JSCAN":   handleJScan,
		"SHOW":    handleShow,
		"PAUSE":   handlePause,
	}
}

func errWrongArity(name string) error {
	return fmt.Errorf("ERR wrong number of arguments for '%s' command", strings.ToLower(name))
}

var errSyntax = errors.New("ERR syntax error")

func errNotInteger(arg string) error {
	return fmt.Errorf("ERR value '%s' is not an integer or out of range", arg)
}

func parseInt(arg string) (int64, error) {
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, errNotInteger(arg)
	}

	return n, nil
}

// options walks the keyword arguments of a command.
type options struct {
	args []string
	i    int
}

func (o *options) next() (string, bool) {
	if o.i >= len(o.args) {
		return "", false
	}

	arg := o.args[o.i]
	o.i++
	return strings.ToUpper(arg), true
}

func (o *options) value() (string, error) {
	if o.i >= len(o.args) {
		return "", errSyntax
	}

	arg := o.args[o.i]
	o.i++
	return arg, nil
}

func (o *options) int() (int64, error) {
	arg, err := o.value()
	if err != nil {
		return 0, err
	}

	return parseInt(arg)
}

func (o *options) rest() []string {
	rest := o.args[o.i:]
	o.i = len(o.args)
	return rest
}

func handlePing(c *serverConn, args []string) (response, error) {
	return status("PONG"), nil
}

func handleHello(c *serverConn, args []string) (response, error) {
	if len(args) != 0 {
		return response{}, errWrongArity("HELLO")
	}

	nodes := c.server.nodes()

	elems := make([]protocol.Reply, 0, len(nodes)+2)
	elems = append(elems, protocol.Integer(1), protocol.String(c.server.nodeID))

	for _, node := range nodes {
		elems = append(elems, protocol.Strings(
			node.ID,
			node.Host,
			strconv.Itoa(node.Port),
			strconv.Itoa(node.Priority),
		))
	}

	return reply(protocol.Array(elems...)), nil
}

func handleAuth(c *serverConn, args []string) (response, error) {
	if len(args) != 1 {
		return response{}, errWrongArity("AUTH")
	}

	if c.server.options.Password == "" {
		return response{}, errors.New("ERR Client sent AUTH, but no password is set")
	}

	if args[0] != c.server.options.Password {
		c.authed = false
		return response{}, errors.New("ERR invalid password")
	}

	c.authed = true
	return status("OK"), nil
}

func handleInfo(c *serverConn, args []string) (response, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# Server\r\n")
	fmt.Fprintf(&b, "disque_version:1.0-rc1\r\n")
	fmt.Fprintf(&b, "run_id:%s\r\n", c.server.nodeID)
	fmt.Fprintf(&b, "tcp_port:%d\r\n", c.server.Port())
	fmt.Fprintf(&b, "\r\n# Clients\r\n")
	fmt.Fprintf(&b, "connected_clients:%d\r\n", c.server.ConnCount())
	fmt.Fprintf(&b, "\r\n# Jobs\r\n")
	fmt.Fprintf(&b, "registered_jobs:%d\r\n", len(c.server.store.Jobs()))
	fmt.Fprintf(&b, "\r\n# Queues\r\n")
	fmt.Fprintf(&b, "registered_queues:%d\r\n", len(c.server.store.QueueNames()))

	return reply(protocol.String(b.String())), nil
}

// ADDJOB queue body ms-timeout [REPLICATE n] [DELAY sec] [RETRY sec] [TTL sec]
// [MAXLEN n] [ASYNC]
func handleAddJob(c *serverConn, args []string) (response, error) {
	if len(args) < 3 {
		return response{}, errWrongArity("ADDJOB")
	}

	queue, body := args[0], args[1]
	if _, err := parseInt(args[2]); err != nil {
		return response{}, err
	}

	var opts AddOptions
	o := &options{args: args[3:]}

	for {
		keyword, ok := o.next()
		if !ok {
			break
		}

		var err error
		switch keyword {
		case "REPLICATE":
			opts.Replicate, err = o.int()
		case "DELAY":
			opts.Delay, err = seconds(o)
		case "RETRY":
			opts.Retry, err = seconds(o)
		case "TTL":
			opts.TTL, err = seconds(o)
		case "MAXLEN":
			opts.MaxLen, err = o.int()
		case "ASYNC":
		default:
			err = errSyntax
		}

		if err != nil {
			return response{}, err
		}
	}

	id, err := c.server.store.Add(queue, body, opts)
	if err != nil {
		return response{}, err
	}

	return reply(protocol.String(id)), nil
}

func seconds(o *options) (time.Duration, error) {
	n, err := o.int()
	if err != nil {
		return 0, err
	}

	return time.Duration(n) * time.Second, nil
}

// GETJOB [NOHANG] [TIMEOUT ms] [COUNT n] [WITHCOUNTERS] FROM queue...
func handleGetJob(c *serverConn, args []string) (response, error) {
	var (
		nohang, withCounters bool
		timeout, count       int64 = 0, 1
		queues               []string
	)

	o := &options{args: args}

	for queues == nil {
		keyword, ok := o.next()
		if !ok {
			return response{}, errSyntax
		}

		var err error
		switch keyword {
		case "NOHANG":
			nohang = true
		case "WITHCOUNTERS":
			withCounters = true
		case "TIMEOUT":
			timeout, err = o.int()
		case "COUNT":
			count, err = o.int()
		case "FROM":
			queues = o.rest()
		default:
			err = errSyntax
		}

		if err != nil {
			return response{}, err
		}
	}

	if len(queues) == 0 || count < 1 || timeout < 0 {
		return response{}, errSyntax
	}

	ctx := c.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Millisecond)
		defer cancel()
	}

	jobs, err := c.server.store.Fetch(ctx, queues, int(count), nohang)
	if err != nil {
		return response{}, fmt.Errorf("ERR %w", err)
	}

	if len(jobs) == 0 {
		return reply(protocol.Nil()), nil
	}

	elems := make([]protocol.Reply, 0, len(jobs))
	for _, job := range jobs {
		tuple := []protocol.Reply{
			protocol.String(job.Queue),
			protocol.String(job.ID),
			protocol.String(job.Body),
		}

		if withCounters {
			tuple = append(tuple,
				protocol.String("nacks"), protocol.Integer(job.Nacks),
				protocol.String("additional-deliveries"), protocol.Integer(job.AdditionalDeliveries))
		}

		elems = append(elems, protocol.Array(tuple...))
	}

	return reply(protocol.Array(elems...)), nil
}

func jobIDsHandler(fn func(s *Store, ids ...string) int64) handler {
	return func(c *serverConn, args []string) (response, error) {
		if len(args) == 0 {
			return response{}, errors.New("ERR at least one job id is required")
		}

		return reply(protocol.Integer(fn(c.server.store, args...))), nil
	}
}

func handleWorking(c *serverConn, args []string) (response, error) {
	if len(args) != 1 {
		return response{}, errWrongArity("WORKING")
	}

	retry, err := c.server.store.Working(args[0])
	if err != nil {
		return response{}, err
	}

	return reply(protocol.Integer(int64(retry.Seconds()))), nil
}

func handleQLen(c *serverConn, args []string) (response, error) {
	if len(args) != 1 {
		return response{}, errWrongArity("QLEN")
	}

	return reply(protocol.Integer(c.server.store.Len(args[0]))), nil
}

func handleQPeek(c *serverConn, args []string) (response, error) {
	if len(args) != 2 {
		return response{}, errWrongArity("QPEEK")
	}

	count, err := parseInt(args[1])
	if err != nil {
		return response{}, err
	}

	jobs := c.server.store.Peek(args[0], int(count))

	elems := make([]protocol.Reply, 0, len(jobs))
	for _, job := range jobs {
		elems = append(elems, protocol.Strings(job.Queue, job.ID, job.Body))
	}

	return reply(protocol.Array(elems...)), nil
}

func handleQStat(c *serverConn, args []string) (response, error) {
	if len(args) != 1 {
		return response{}, errWrongArity("QSTAT")
	}

	stat, ok := c.server.store.Stat(args[0])
	if !ok {
		return reply(protocol.Nil()), nil
	}

	return reply(protocol.Array(
		protocol.String("name"), protocol.String(stat.Name),
		protocol.String("len"), protocol.Integer(stat.Len),
		protocol.String("age"), protocol.Integer(int64(stat.Age.Seconds())),
		protocol.String("idle"), protocol.Integer(int64(stat.Idle.Seconds())),
		protocol.String("blocked"), protocol.Integer(stat.Blocked),
		protocol.String("import-from"), protocol.Array(),
		protocol.String("import-rate"), protocol.Integer(0),
		protocol.String("jobs-in"), protocol.Integer(stat.JobsIn),
		protocol.String("jobs-out"), protocol.Integer(stat.JobsOut),
		protocol.String("pause"), protocol.String(stat.Pause),
	)), nil
}

func handleShow(c *serverConn, args []string) (response, error) {
	if len(args) != 1 {
		return response{}, errWrongArity("SHOW")
	}

	job, ok := c.server.store.Show(args[0])
	if !ok {
		return reply(protocol.Nil()), nil
	}

	return reply(jobDetails(job)), nil
}

func jobDetails(job Job) protocol.Reply {
	return protocol.Array(
		protocol.String("id"), protocol.String(job.ID),
		protocol.String("queue"), protocol.String(job.Queue),
		protocol.String("state"), protocol.String(job.State),
		protocol.String("repl"), protocol.Integer(job.Replicate),
		protocol.String("ttl"), protocol.Integer(int64(job.TTL.Seconds())),
		protocol.String("ctime"), protocol.Integer(job.CreatedAt.UnixNano()),
		protocol.String("delay"), protocol.Integer(int64(job.Delay.Seconds())),
		protocol.String("retry"), protocol.Integer(int64(job.Retry.Seconds())),
		protocol.String("nacks"), protocol.Integer(job.Nacks),
		protocol.String("additional-deliveries"), protocol.Integer(job.AdditionalDeliveries),
		protocol.String("body"), protocol.String(job.Body),
	)
}

func handlePause(c *serverConn, args []string) (response, error) {
	if len(args) != 2 {
		return response{}, errWrongArity("PAUSE")
	}

	state, err := c.server.store.Pause(args[0], strings.ToLower(args[1]))
	if err != nil {
		return response{}, err
	}

	return status(state), nil
}

const defaultScanCount = 10

// scanArgs reads the leading cursor and the COUNT/BUSYLOOP options shared by
// QSCAN and JSCAN, handing every other keyword to extra.
func scanArgs(args []string, extra func(keyword string, o *options) error) (cursor, count int64, err error) {
	count = defaultScanCount
	o := &options{args: args}

	if len(args) > 0 {
		if n, perr := strconv.ParseInt(args[0], 10, 64); perr == nil {
			if n < 0 {
				return 0, 0, errors.New("ERR invalid cursor")
			}
			cursor = n
			o.i = 1
		}
	}

	for {
		keyword, ok := o.next()
		if !ok {
			return cursor, count, nil
		}

		switch keyword {
		case "COUNT":
			if count, err = o.int(); err == nil && count < 1 {
				err = errSyntax
			}
		case "BUSYLOOP":
		default:
			err = extra(keyword, o)
		}

		if err != nil {
			return 0, 0, err
		}
	}
}

// page slices items by cursor and returns the cursor of the next page, 0
// once there is none.
func page(total int, cursor, count int64) (from, to int, next int64) {
	from = int(cursor)
	if from > total {
		from = total
	}

	to = from + int(count)
	if to >= total {
		return from, total, 0
	}

	return from, to, int64(to)
}

// QSCAN [cursor] [COUNT n] [BUSYLOOP] [MINLEN n] [MAXLEN n] [IMPORTRATE n]
func handleQScan(c *serverConn, args []string) (response, error) {
	var minLen, maxLen int64

	cursor, count, err := scanArgs(args, func(keyword string, o *options) (err error) {
		switch keyword {
		case "MINLEN":
			minLen, err = o.int()
		case "MAXLEN":
			maxLen, err = o.int()
		case "IMPORTRATE":
			_, err = o.int()
		default:
			err = errSyntax
		}
		return err
	})
	if err != nil {
		return response{}, err
	}

	names := make([]string, 0)
	for _, name := range c.server.store.QueueNames() {
		n := c.server.store.Len(name)
		if n < minLen || (maxLen > 0 && n > maxLen) {
			continue
		}
		names = append(names, name)
	}

	from, to, next := page(len(names), cursor, count)

	return reply(protocol.Array(
		protocol.String(strconv.FormatInt(next, 10)),
		protocol.Strings(names[from:to]...),
	)), nil
}

// JSCAN [cursor] [COUNT n] [BUSYLOOP] [QUEUE q] [STATE s]... [REPLY all|id]
func handleJScan(c *serverConn, args []string) (response, error) {
	var (
		queue   string
		states  = make(map[string]bool)
		details bool
	)

	cursor, count, err := scanArgs(args, func(keyword string, o *options) error {
		value, err := o.value()
		if err != nil {
			return err
		}

		switch keyword {
		case "QUEUE":
			queue = value
		case "STATE":
			states[strings.ToLower(value)] = true
		case "REPLY":
			switch strings.ToLower(value) {
			case "all":
				details = true
			case "id":
				details = false
			default:
				return errSyntax
			}
		default:
			return errSyntax
		}
		return nil
	})
	if err != nil {
		return response{}, err
	}

	jobs := make([]Job, 0)
	for _, job := range c.server.store.Jobs() {
		if queue != "" && job.Queue != queue {
			continue
		}
		if len(states) > 0 && !states[job.State] {
			continue
		}
		jobs = append(jobs, job)
	}

	from, to, next := page(len(jobs), cursor, count)

	items := make([]protocol.Reply, 0, to-from)
	for _, job := range jobs[from:to] {
		if details {
			items = append(items, jobDetails(job))
		} else {
			items = append(items, protocol.String(job.ID))
		}
	}

	return reply(protocol.Array(
		protocol.String(strconv.FormatInt(next, 10)),
		protocol.Array(items...),
	)), nil
}
