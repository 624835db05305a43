// Package worker fetches jobs from Disque queues and hands them to a Handler.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/luma/disq/client"
	"github.com/luma/disq/command"
	"github.com/luma/disq/marshal"
	"github.com/luma/disq/protocol"
)

const (
	DefaultTimeout = time.Second
	DefaultBackoff = time.Second
)

var ErrNoQueues = errors.New("no queues to work on")

// Handler processes a job. Returning an error fails the job.
type Handler func(ctx context.Context, job *client.Job) error

type Options struct {
	Queues []string

	// Count is how many jobs to fetch at once, defaults to 1
	Count int

	// Timeout bounds each fetch so cancellation is noticed, defaults to a
	// second
	Timeout time.Duration

	// Backoff is how long to wait before fetching again after a failure
	Backoff time.Duration

	// KeepFailed leaves failed jobs to be redelivered once their retry
	// period expires, instead of NACKing them.
	KeepFailed bool

	// Marshaler decodes job bodies, defaults to JSON
	Marshaler marshal.Marshaler

	Log *zap.Logger
}

type Worker struct {
	client  *client.Client
	handler Handler
	options Options
	stats   Stats

	log *zap.Logger
}

func New(c *client.Client, handler Handler, options Options) (*Worker, error) {
	if len(options.Queues) == 0 {
		return nil, ErrNoQueues
	}

	if options.Count < 1 {
		options.Count = 1
	}

	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}

	if options.Backoff <= 0 {
		options.Backoff = DefaultBackoff
	}

	if options.Marshaler == nil {
		options.Marshaler = marshal.JSON{}
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Worker{
		client:  c,
		handler: handler,
		options: options,
		log:     log,
	}, nil
}

func (w *Worker) Stats() *Stats {
	return &w.stats
}

// Run works on jobs until ctx is cancelled. Jobs are acknowledged when the
// handler succeeds and NACKed when it fails.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Working",
		zap.Strings("queues", w.options.Queues),
		zap.Int("count", w.options.Count))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Context cancelled, exiting...")
			return nil

		default:
		}

		jobs, err := w.fetch()
		if err != nil {
			w.stats.FetchErrors.Add(1)
			w.log.Warn("Failed to fetch jobs", zap.Error(err))

			if !w.wait(ctx) {
				return nil
			}

			w.reconnect(err)
			continue
		}

		for _, job := range jobs {
			w.process(ctx, job)
		}
	}
}

func (w *Worker) fetch() ([]command.Job, error) {
	return w.client.GetJob(w.options.Queues, command.Options{
		"count":        w.options.Count,
		"timeout":      w.options.Timeout.Milliseconds(),
		"withcounters": true,
	})
}

// wait sleeps for the backoff period, it returns false when ctx is done
// first.
func (w *Worker) wait(ctx context.Context) bool {
	timer := time.NewTimer(w.options.Backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (w *Worker) reconnect(cause error) {
	if !protocol.IsConnectionError(cause) && w.client.Manager().IsConnected() {
		return
	}

	if _, err := w.client.Connect(); err != nil {
		w.log.Warn("Failed to reconnect", zap.Error(err))
	}
}

func (w *Worker) process(ctx context.Context, fetched command.Job) {
	w.stats.Fetched.Add(1)

	log := w.log.With(
		zap.String("queue", fetched.Queue),
		zap.String("job", fetched.ID))

	job, err := client.Decode(fetched, w.options.Marshaler)
	if err == nil {
		err = w.handle(ctx, job)
	}

	if err != nil {
		w.stats.Failed.Add(1)
		log.Error("Job failed",
			zap.Int64("nacks", fetched.Nacks),
			zap.Error(err))

		if w.options.KeepFailed {
			return
		}

		if _, err := w.client.Nack(fetched.ID); err != nil {
			log.Warn("Failed to NACK job", zap.Error(err))
		}
		return
	}

	if _, err := w.client.AckJob(fetched.ID); err != nil {
		log.Warn("Failed to acknowledge job", zap.Error(err))
		return
	}

	w.stats.Processed.Add(1)
	log.Debug("Job processed")
}

// handle runs the handler, turning panics into errors.
func (w *Worker) handle(ctx context.Context, job *client.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return w.handler(ctx, job)
}
