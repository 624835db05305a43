// Package client is a typed Disque client.
//
// A Client executes commands on the node its connection.Manager is connected
// to. Like the Manager, a Client is not safe for concurrent use.
package client

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/luma/disq/command"
	"github.com/luma/disq/connection"
)

type Client struct {
	manager  *connection.Manager
	registry *command.Registry
	log      *zap.Logger
}

func New(manager *connection.Manager, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		manager:  manager,
		registry: command.NewRegistry(),
		log:      log,
	}
}

// Dial builds a client for options and connects it.
func Dial(options connection.Options) (*Client, error) {
	c := New(connection.NewManager(options), options.Log)
	if _, err := c.Connect(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Client) Manager() *connection.Manager {
	return c.manager
}

// Registry is the registry Execute looks commands up in. Register
// descriptors on it to support commands this package does not know about.
func (c *Client) Registry() *command.Registry {
	return c.registry
}

func (c *Client) Connect() (*command.Hello, error) {
	return c.manager.Connect()
}

func (c *Client) Close() error {
	return c.manager.Disconnect()
}

// Execute builds the command called name and executes it.
func (c *Client) Execute(name command.Name, args []interface{}, opts command.Options) (interface{}, error) {
	cmd, err := c.registry.New(name, args, opts)
	if err != nil {
		return nil, err
	}

	return c.execute(cmd)
}

func (c *Client) execute(cmd *command.Command) (interface{}, error) {
	c.log.Debug("Executing", zap.String("command", string(cmd.Name())))

	result, err := c.manager.Execute(cmd)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// AddJob adds a job to queue and returns its id. The id is empty when the
// server replied null.
func (c *Client) AddJob(queue, body string, opts command.Options) (string, error) {
	cmd, err := command.NewAddJob(queue, body, opts)
	if err != nil {
		return "", err
	}

	result, err := c.execute(cmd)
	if err != nil || result == nil {
		return "", err
	}

	return result.(string), nil
}

// GetJob fetches jobs from queues. It returns an empty slice when no job was
// available before the timeout.
func (c *Client) GetJob(queues []string, opts command.Options) ([]command.Job, error) {
	cmd, err := command.NewGetJob(queues, opts)
	if err != nil {
		return nil, err
	}

	return c.jobs(cmd)
}

func (c *Client) AckJob(ids ...string) (int64, error) {
	return c.integer(command.NewAckJob(ids...))
}

func (c *Client) FastAck(ids ...string) (int64, error) {
	return c.integer(command.NewFastAck(ids...))
}

func (c *Client) DelJob(ids ...string) (int64, error) {
	return c.integer(command.NewDelJob(ids...))
}

func (c *Client) Nack(ids ...string) (int64, error) {
	return c.integer(command.NewNack(ids...))
}

func (c *Client) Enqueue(ids ...string) (int64, error) {
	return c.integer(command.NewEnqueue(ids...))
}

func (c *Client) Dequeue(ids ...string) (int64, error) {
	return c.integer(command.NewDequeue(ids...))
}

// Working postpones the next delivery of job id and returns the number of
// seconds it was postponed by.
func (c *Client) Working(id string) (int64, error) {
	return c.integer(command.NewWorking(id))
}

func (c *Client) QLen(queue string) (int64, error) {
	return c.integer(command.NewQLen(queue))
}

// QPeek returns up to count jobs of queue without consuming them. A negative
// count peeks from the newest job.
func (c *Client) QPeek(queue string, count int) ([]command.Job, error) {
	cmd, err := command.NewQPeek(queue, count)
	if err != nil {
		return nil, err
	}

	return c.jobs(cmd)
}

func (c *Client) QScan(cursor int64, opts command.Options) (*command.CursorPage, error) {
	return c.page(command.NewQScan(cursor, opts))
}

func (c *Client) JScan(cursor int64, opts command.Options) (*command.CursorPage, error) {
	return c.page(command.NewJScan(cursor, opts))
}

// QStat returns the state of queue, nil when the queue does not exist.
func (c *Client) QStat(queue string) (command.KeyValues, error) {
	return c.keyValues(command.NewQStat(queue))
}

// Show returns the state of job id, nil when the job does not exist.
func (c *Client) Show(id string) (command.KeyValues, error) {
	return c.keyValues(command.NewShow(id))
}

func (c *Client) Pause(queue, mode string) (string, error) {
	return c.status(command.NewPause(queue, mode))
}

func (c *Client) Hello() (*command.Hello, error) {
	cmd, err := command.NewHello()
	if err != nil {
		return nil, err
	}

	result, err := c.execute(cmd)
	if err != nil {
		return nil, err
	}

	return result.(*command.Hello), nil
}

func (c *Client) Auth(password string) (string, error) {
	return c.status(command.NewAuth(password))
}

func (c *Client) Info() (string, error) {
	return c.status(command.NewInfo())
}

// ScanQueues calls fn with every queue QSCAN returns, until the cursor is
// exhausted or fn returns an error.
func (c *Client) ScanQueues(opts command.Options, fn func(queue string) error) error {
	return c.scan(command.NewQScan, opts, func(page *command.CursorPage) error {
		for _, queue := range page.Items {
			if err := fn(queue); err != nil {
				return err
			}
		}

		return nil
	})
}

// ScanJobs calls fn with every job JSCAN returns. details is only set when
// opts asks for "reply" "all".
func (c *Client) ScanJobs(opts command.Options, fn func(id string, details command.KeyValues) error) error {
	return c.scan(command.NewJScan, opts, func(page *command.CursorPage) error {
		for i, id := range page.Items {
			var details command.KeyValues
			if i < len(page.Jobs) {
				details = page.Jobs[i]
			}

			if err := fn(id, details); err != nil {
				return err
			}
		}

		return nil
	})
}

type scanFunc func(cursor int64, opts command.Options) (*command.Command, error)

func (c *Client) scan(build scanFunc, opts command.Options, visit func(*command.CursorPage) error) error {
	var cursor int64

	for {
		page, err := c.page(build(cursor, opts))
		if err != nil {
			return err
		}

		if err := visit(page); err != nil {
			return err
		}

		if page.Finished {
			return nil
		}

		cursor = page.NextCursor
	}
}

func (c *Client) jobs(cmd *command.Command) ([]command.Job, error) {
	result, err := c.execute(cmd)
	if err != nil {
		return nil, err
	}

	return result.([]command.Job), nil
}

func (c *Client) integer(cmd *command.Command, err error) (int64, error) {
	if err != nil {
		return 0, err
	}

	result, err := c.execute(cmd)
	if err != nil {
		return 0, err
	}

	return result.(int64), nil
}

func (c *Client) status(cmd *command.Command, err error) (string, error) {
	if err != nil {
		return "", err
	}

	result, err := c.execute(cmd)
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

func (c *Client) page(cmd *command.Command, err error) (*command.CursorPage, error) {
	if err != nil {
		return nil, err
	}

	result, err := c.execute(cmd)
	if err != nil {
		return nil, err
	}

	return result.(*command.CursorPage), nil
}

func (c *Client) keyValues(cmd *command.Command, err error) (command.KeyValues, error) {
	if err != nil {
		return nil, err
	}

	result, err := c.execute(cmd)
	if err != nil || result == nil {
		return nil, err
	}

	kv, ok := result.(command.KeyValues)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result %T", cmd.Name(), result)
	}

	return kv, nil
}
