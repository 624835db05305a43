package disquetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	StateQueued = "queued"
	StateActive = "active"

	PauseNone = "none"
	PauseIn   = "in"
	PauseOut  = "out"
	PauseAll  = "all"

	DefaultRetry = 300 * time.Second
	DefaultTTL   = 24 * time.Hour
)

var (
	ErrClosed     = errors.New("store is closed")
	ErrUnknownJob = errors.New("NOJOB Job not known in the context of this node.")
	ErrPaused     = errors.New("PAUSED Queue paused in input, try later")
	ErrQueueFull  = errors.New("MAXLEN Queue is already longer than the specified MAXLEN count")
)

// AddOptions are the ADDJOB options the store understands.
type AddOptions struct {
	Replicate int64
	Delay     time.Duration
	Retry     time.Duration
	TTL       time.Duration
	MaxLen    int64
}

// Job is a snapshot of a job held by the store.
type Job struct {
	ID    string
	Queue string
	Body  string
	State string

	Replicate            int64
	Retry                time.Duration
	TTL                  time.Duration
	Delay                time.Duration
	CreatedAt            time.Time
	Nacks                int64
	AdditionalDeliveries int64
}

type job struct {
	Job

	delivered bool
	requeue   *time.Timer
}

type queue struct {
	name    string
	ids     []string
	pause   string
	created time.Time
	touched time.Time
	jobsIn  int64
	jobsOut int64
	blocked int64
}

// QueueStat is the state of a queue as reported by QSTAT.
type QueueStat struct {
	Name    string
	Len     int64
	Age     time.Duration
	Idle    time.Duration
	Blocked int64
	JobsIn  int64
	JobsOut int64
	Pause   string
}

// Store keeps the queues and jobs of a single node in memory.
type Store struct {
	prefix string

	mu      sync.Mutex
	jobs    map[string]*job
	queues  map[string]*queue
	counter uint64

	// changed is closed, and replaced, whenever a job is queued
	changed chan struct{}

	// stop will be closed when Close() is called
	stop chan struct{}
}

// NewStore returns a store whose job ids embed nodePrefix.
func NewStore(nodePrefix string) *Store {
	return &Store{
		prefix:  nodePrefix,
		jobs:    make(map[string]*job),
		queues:  make(map[string]*queue),
		changed: make(chan struct{}),
		stop:    make(chan struct{}),
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning() {
		return nil
	}

	close(s.stop)

	for _, j := range s.jobs {
		if j.requeue != nil {
			j.requeue.Stop()
		}
	}

	return nil
}

// Add creates a job and queues it, after opts.Delay when set.
func (s *Store) Add(queueName, body string, opts AddOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning() {
		return "", ErrClosed
	}

	q := s.queue(queueName)
	if q.pause == PauseIn || q.pause == PauseAll {
		return "", ErrPaused
	}

	if opts.MaxLen > 0 && int64(len(q.ids)) >= opts.MaxLen {
		return "", ErrQueueFull
	}

	if opts.Retry == 0 {
		opts.Retry = DefaultRetry
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Replicate == 0 {
		opts.Replicate = 1
	}

	now := time.Now()
	s.counter++

	j := &job{Job: Job{
		ID:        s.newID(queueName, body, now, opts.TTL),
		Queue:     queueName,
		Body:      body,
		State:     StateQueued,
		Replicate: opts.Replicate,
		Retry:     opts.Retry,
		TTL:       opts.TTL,
		Delay:     opts.Delay,
		CreatedAt: now,
	}}

	s.jobs[j.ID] = j
	q.jobsIn++

	if opts.Delay > 0 {
		j.State = StateActive
		id := j.ID
		j.requeue = time.AfterFunc(opts.Delay, func() { s.requeue(id, false) })
		return j.ID, nil
	}

	s.enqueueLocked(j)
	return j.ID, nil
}

// newID builds ids shaped like the ones Disque hands out:
// D-<node prefix>-<hash>-<ttl>.
func (s *Store) newID(queueName, body string, now time.Time, ttl time.Duration) string {
	h := xxhash.New()
	_, _ = h.WriteString(queueName)
	_, _ = h.WriteString(body)
	_, _ = h.WriteString(strconv.FormatInt(now.UnixNano(), 10))
	_, _ = h.WriteString(strconv.FormatUint(s.counter, 10))

	return fmt.Sprintf("D-%s-%016x-%04x", s.prefix, h.Sum64(), uint64(ttl.Seconds())&0xffff)
}

// Fetch takes up to count jobs from queues, waiting for one to be queued
// unless nohang is set. It returns no jobs when ctx is done first.
func (s *Store) Fetch(ctx context.Context, queues []string, count int, nohang bool) ([]Job, error) {
	if count < 1 {
		count = 1
	}

	blocked := false
	defer func() {
		if blocked {
			s.unblock(queues)
		}
	}()

	for {
		s.mu.Lock()
		if !s.isRunning() {
			s.mu.Unlock()
			return nil, ErrClosed
		}

		jobs := s.takeLocked(queues, count)
		changed := s.changed

		if len(jobs) == 0 && !nohang && !blocked {
			blocked = true
			for _, name := range queues {
				s.queue(name).blocked++
			}
		}
		s.mu.Unlock()

		if len(jobs) > 0 || nohang {
			return jobs, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, nil
		case <-s.stop:
			return nil, ErrClosed
		}
	}
}

func (s *Store) unblock(queues []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range queues {
		if q, ok := s.queues[name]; ok && q.blocked > 0 {
			q.blocked--
		}
	}
}

func (s *Store) takeLocked(queues []string, count int) []Job {
	jobs := make([]Job, 0, count)
	now := time.Now()

	for _, name := range queues {
		q, ok := s.queues[name]
		if !ok || q.pause == PauseOut || q.pause == PauseAll {
			continue
		}

		for len(q.ids) > 0 && len(jobs) < count {
			j := s.jobs[q.ids[0]]
			q.ids = q.ids[1:]
			q.jobsOut++
			q.touched = now

			j.State = StateActive
			j.delivered = true
			id := j.ID
			j.requeue = time.AfterFunc(j.Retry, func() { s.requeue(id, true) })

			jobs = append(jobs, j.Job)
		}
	}

	return jobs
}

// requeue puts an active job back in its queue. Redeliveries that do not
// come from a NACK count as additional deliveries.
func (s *Store) requeue(id string, redelivery bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.State != StateActive || !s.isRunning() {
		return
	}

	if redelivery {
		j.AdditionalDeliveries++
	}

	s.enqueueLocked(j)
}

func (s *Store) enqueueLocked(j *job) {
	if j.requeue != nil {
		j.requeue.Stop()
		j.requeue = nil
	}

	q := s.queue(j.Queue)
	j.State = StateQueued
	q.ids = append(q.ids, j.ID)
	q.touched = time.Now()

	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Store) queue(name string) *queue {
	q, ok := s.queues[name]
	if !ok {
		now := time.Now()
		q = &queue{name: name, pause: PauseNone, created: now, touched: now}
		s.queues[name] = q
	}

	return q
}

func (s *Store) removeFromQueueLocked(j *job) {
	q, ok := s.queues[j.Queue]
	if !ok {
		return
	}

	for i, id := range q.ids {
		if id == j.ID {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			return
		}
	}
}

// Ack acknowledges jobs and returns how many were known. Acknowledged jobs
// are forgotten straight away, there are no other nodes to tell.
func (s *Store) Ack(ids ...string) int64 {
	return s.Delete(ids...)
}

// Delete removes jobs and returns how many were known.
func (s *Store) Delete(ids ...string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, id := range ids {
		j, ok := s.jobs[id]
		if !ok {
			continue
		}

		if j.requeue != nil {
			j.requeue.Stop()
		}

		s.removeFromQueueLocked(j)
		delete(s.jobs, id)
		count++
	}

	return count
}

// Nack puts active jobs back in their queue, counting the failure.
func (s *Store) Nack(ids ...string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, id := range ids {
		j, ok := s.jobs[id]
		if !ok {
			continue
		}

		count++
		j.Nacks++

		if j.State == StateActive {
			s.enqueueLocked(j)
		}
	}

	return count
}

// Enqueue queues jobs that are not queued already.
func (s *Store) Enqueue(ids ...string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, id := range ids {
		j, ok := s.jobs[id]
		if !ok || j.State == StateQueued {
			continue
		}

		if j.delivered {
			j.AdditionalDeliveries++
		}

		s.enqueueLocked(j)
		count++
	}

	return count
}

// Dequeue takes queued jobs out of their queue without delivering them.
func (s *Store) Dequeue(ids ...string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, id := range ids {
		j, ok := s.jobs[id]
		if !ok || j.State != StateQueued {
			continue
		}

		s.removeFromQueueLocked(j)
		j.State = StateActive
		count++
	}

	return count
}

// Working postpones the redelivery of an active job by its retry period,
// which it returns.
func (s *Store) Working(id string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return 0, ErrUnknownJob
	}

	if j.requeue != nil {
		j.requeue.Reset(j.Retry)
	}

	return j.Retry, nil
}

func (s *Store) Len(queueName string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q, ok := s.queues[queueName]; ok {
		return int64(len(q.ids))
	}

	return 0
}

// Peek returns up to count queued jobs, oldest first, or newest first when
// count is negative.
func (s *Store) Peek(queueName string, count int) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[queueName]
	if !ok || count == 0 {
		return []Job{}
	}

	jobs := make([]Job, 0)

	if count > 0 {
		for i := 0; i < len(q.ids) && len(jobs) < count; i++ {
			jobs = append(jobs, s.jobs[q.ids[i]].Job)
		}
	} else {
		for i := len(q.ids) - 1; i >= 0 && len(jobs) < -count; i-- {
			jobs = append(jobs, s.jobs[q.ids[i]].Job)
		}
	}

	return jobs
}

// Show returns the job called id.
func (s *Store) Show(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}

	return j.Job, true
}

func (s *Store) Stat(queueName string) (QueueStat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[queueName]
	if !ok {
		return QueueStat{}, false
	}

	now := time.Now()
	return QueueStat{
		Name:    q.name,
		Len:     int64(len(q.ids)),
		Age:     now.Sub(q.created),
		Idle:    now.Sub(q.touched),
		Blocked: q.blocked,
		JobsIn:  q.jobsIn,
		JobsOut: q.jobsOut,
		Pause:   q.pause,
	}, true
}

// Pause applies mode to the queue and returns its pause state.
func (s *Store) Pause(queueName, mode string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queue(queueName)

	switch mode {
	case PauseNone, PauseAll:
		q.pause = mode
	case PauseIn:
		if q.pause == PauseOut {
			q.pause = PauseAll
		} else if q.pause != PauseAll {
			q.pause = PauseIn
		}
	case PauseOut:
		if q.pause == PauseIn {
			q.pause = PauseAll
		} else if q.pause != PauseAll {
			q.pause = PauseOut
		}
	case "state", "bcast":
	default:
		return "", fmt.Errorf("ERR unknown PAUSE option '%s'", mode)
	}

	if q.pause == PauseNone {
		// a queue that was unpaused may have jobs to hand out
		close(s.changed)
		s.changed = make(chan struct{})
	}

	return q.pause, nil
}

// QueueNames returns the names of the queues, sorted.
func (s *Store) QueueNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Jobs returns every job, sorted by id.
func (s *Store) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j.Job)
	}

	sort.Slice(jobs, func(i, k int) bool { return jobs[i].ID < jobs[k].ID })
	return jobs
}

// isRunning returns true if Close has not been called
func (s *Store) isRunning() bool {
	select {
	case <-s.stop:
		return false

	default:
		return true
	}
}
