package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/luma/disq/client"
	"github.com/luma/disq/connection"
	"github.com/luma/disq/disquetest"
	"github.com/luma/disq/marshal"
	"github.com/luma/disq/worker"
)

var _ = Describe("Worker", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		srv    *disquetest.Server
		c      *client.Client
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())

		var err error
		srv, err = disquetest.Start(ctx, disquetest.Options{})
		Expect(err).To(Succeed())

		c, err = client.Dial(connection.Options{
			Servers: []connection.Credentials{{Host: srv.Host(), Port: srv.Port(), ConnectTimeout: time.Second}},
		})
		Expect(err).To(Succeed())
	})

	AfterEach(func() {
		cancel()
		Expect(c.Close()).To(Succeed())
		Expect(srv.Close()).To(Succeed())
	})

	run := func(w *worker.Worker) <-chan error {
		done := make(chan error, 1)
		go func() {
			done <- w.Run(ctx)
		}()
		return done
	}

	It("requires queues", func() {
		_, err := worker.New(c, nil, worker.Options{})
		Expect(err).To(MatchError(worker.ErrNoQueues))
	})

	It("acknowledges handled jobs", func() {
		producer := c.Queue("emails", nil)
		id, err := producer.Push(marshal.Payload{"to": "ann"}, nil)
		Expect(err).To(Succeed())

		var (
			mu      sync.Mutex
			handled []string
		)

		w, err := worker.New(c, func(ctx context.Context, job *client.Job) error {
			mu.Lock()
			defer mu.Unlock()

			handled = append(handled, job.Field("to").String())
			return nil
		}, worker.Options{Queues: []string{"emails"}, Timeout: 50 * time.Millisecond, Log: zap.NewNop()})
		Expect(err).To(Succeed())

		done := run(w)

		Eventually(func() int64 { return w.Stats().Processed.Load() }).Should(Equal(int64(1)))
		cancel()
		Eventually(done).Should(Receive(BeNil()))

		mu.Lock()
		Expect(handled).To(Equal([]string{"ann"}))
		mu.Unlock()

		_, ok := srv.Store().Show(id)
		Expect(ok).To(BeFalse())
	})

	It("NACKs jobs that fail", func() {
		id, err := c.Queue("emails", nil).Push(marshal.Payload{"to": "bob"}, nil)
		Expect(err).To(Succeed())

		w, err := worker.New(c, func(ctx context.Context, job *client.Job) error {
			return errors.New("smtp is down")
		}, worker.Options{Queues: []string{"emails"}, Timeout: 50 * time.Millisecond})
		Expect(err).To(Succeed())

		done := run(w)

		Eventually(func() int64 { return w.Stats().Failed.Load() }).Should(BeNumerically(">=", 1))
		cancel()
		Eventually(done).Should(Receive(BeNil()))

		job, ok := srv.Store().Show(id)
		Expect(ok).To(BeTrue())
		Expect(job.Nacks).To(BeNumerically(">=", 1))
		Expect(w.Stats().Processed.Load()).To(BeZero())
	})

	It("treats handler panics as failures", func() {
		_, err := c.Queue("emails", nil).Push(marshal.Payload{"to": "eve"}, nil)
		Expect(err).To(Succeed())

		w, err := worker.New(c, func(ctx context.Context, job *client.Job) error {
			panic("boom")
		}, worker.Options{Queues: []string{"emails"}, Timeout: 50 * time.Millisecond, KeepFailed: true})
		Expect(err).To(Succeed())

		done := run(w)

		Eventually(func() int64 { return w.Stats().Failed.Load() }).Should(Equal(int64(1)))
		cancel()
		Eventually(done).Should(Receive(BeNil()))

		Expect(srv.Store().Len("emails")).To(BeZero())
	})

	It("fails jobs whose body cannot be decoded", func() {
		_, err := c.AddJob("emails", "not json", nil)
		Expect(err).To(Succeed())

		w, err := worker.New(c, func(ctx context.Context, job *client.Job) error {
			return nil
		}, worker.Options{Queues: []string{"emails"}, Timeout: 50 * time.Millisecond, KeepFailed: true})
		Expect(err).To(Succeed())

		done := run(w)

		Eventually(func() int64 { return w.Stats().Failed.Load() }).Should(Equal(int64(1)))
		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})
})

var _ = Describe("NewRouter", func() {
	It("answers pings and reports stats", func() {
		stats := &worker.Stats{}
		stats.Processed.Add(3)
		stats.Failed.Add(1)

		router := worker.NewRouter(stats, false, zap.NewNop())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("pong"))

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))

		var snapshot worker.StatsSnapshot
		Expect(json.Unmarshal(rec.Body.Bytes(), &snapshot)).To(Succeed())
		Expect(snapshot).To(Equal(worker.StatsSnapshot{Processed: 3, Failed: 1}))
	})
})
