package client

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/luma/disq/command"
	"github.com/luma/disq/marshal"
)

// Job is a job fetched through a Queue, with its decoded body.
type Job struct {
	command.Job

	Payload marshal.Payload
}

// Field looks up a gjson path in the job payload.
func (j *Job) Field(path string) gjson.Result {
	body, err := marshal.JSON{}.Marshal(j.Payload)
	if err != nil {
		return gjson.Result{}
	}

	return gjson.Get(body, path)
}

// Queue pushes and pulls structured jobs on a single queue.
type Queue struct {
	client    *Client
	name      string
	marshaler marshal.Marshaler
}

// Queue returns a helper for queue name. Bodies are JSON when marshaler is
// nil.
func (c *Client) Queue(name string, marshaler marshal.Marshaler) *Queue {
	if marshaler == nil {
		marshaler = marshal.JSON{}
	}

	return &Queue{client: c, name: name, marshaler: marshaler}
}

func (q *Queue) Name() string {
	return q.name
}

// Push adds a job and returns its id.
func (q *Queue) Push(payload marshal.Payload, opts command.Options) (string, error) {
	body, err := q.marshaler.Marshal(payload)
	if err != nil {
		return "", err
	}

	return q.client.AddJob(q.name, body, opts)
}

// Pull waits up to timeout for a job, a zero timeout waits forever. It
// returns nil when no job arrived in time.
func (q *Queue) Pull(timeout time.Duration) (*Job, error) {
	jobs, err := q.PullMany(1, timeout)
	if err != nil || len(jobs) == 0 {
		return nil, err
	}

	return jobs[0], nil
}

// PullMany waits up to timeout for at most count jobs.
func (q *Queue) PullMany(count int, timeout time.Duration) ([]*Job, error) {
	opts := command.Options{"count": count, "withcounters": true}
	if timeout > 0 {
		opts["timeout"] = timeout.Milliseconds()
	}

	fetched, err := q.client.GetJob([]string{q.name}, opts)
	if err != nil {
		return nil, err
	}

	jobs := make([]*Job, 0, len(fetched))
	for _, job := range fetched {
		decoded, err := Decode(job, q.marshaler)
		if err != nil {
			return jobs, err
		}

		jobs = append(jobs, decoded)
	}

	return jobs, nil
}

// Decode unmarshals the body of job.
func Decode(job command.Job, marshaler marshal.Marshaler) (*Job, error) {
	payload, err := marshaler.Unmarshal(job.Body)
	if err != nil {
		return nil, err
	}

	return &Job{Job: job, Payload: payload}, nil
}

// Processed acknowledges the job.
func (q *Queue) Processed(job *Job) error {
	_, err := q.client.AckJob(job.ID)
	return err
}

// Failed puts the job back in the queue, incrementing its nack counter.
func (q *Queue) Failed(job *Job) error {
	_, err := q.client.Nack(job.ID)
	return err
}

// Processing tells the server the job is still being worked on, and returns
// how long its next delivery is postponed.
func (q *Queue) Processing(job *Job) (time.Duration, error) {
	seconds, err := q.client.Working(job.ID)
	if err != nil {
		return 0, err
	}

	return time.Duration(seconds) * time.Second, nil
}

func (q *Queue) Len() (int64, error) {
	return q.client.QLen(q.name)
}
