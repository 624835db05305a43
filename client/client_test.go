package client_test

import (
	"context"
	"errors"
	"net"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/disq/client"
	"github.com/luma/disq/command"
	"github.com/luma/disq/connection"
	"github.com/luma/disq/disquetest"
	"github.com/luma/disq/protocol"
)

var _ = Describe("Client", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		srv    *disquetest.Server
		c      *client.Client
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		srv = startServer(ctx, disquetest.Options{})
		c = dial(credentials(srv))
	})

	AfterEach(func() {
		Expect(c.Close()).To(Succeed())
		Expect(srv.Close()).To(Succeed())
		cancel()
	})

	Describe("Connect()", func() {
		It("discovers the node it connected to", func() {
			hello, err := c.Hello()
			Expect(err).To(Succeed())
			Expect(hello.ID).To(Equal(srv.NodeID()))
			Expect(c.Manager().CurrentNode().ID()).To(Equal(srv.NodeID()))
		})

		It("skips servers that are down", func() {
			l, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).To(Succeed())
			down := l.Addr().(*net.TCPAddr).Port
			Expect(l.Close()).To(Succeed())

			other := dial(connection.Credentials{Host: "127.0.0.1", Port: down}, credentials(srv))
			defer other.Close()

			Expect(other.Manager().CurrentNode().ID()).To(Equal(srv.NodeID()))
		})
	})

	Describe("jobs", func() {
		It("adds, fetches and acknowledges a job", func() {
			id, err := c.AddJob("q", "hello", command.Options{"retry": 10})
			Expect(err).To(Succeed())

			prefix, ok := command.JobNodePrefix(id)
			Expect(ok).To(BeTrue())
			Expect(prefix).To(Equal(command.NodePrefix(srv.NodeID())))

			Expect(c.QLen("q")).To(Equal(int64(1)))

			jobs, err := c.GetJob([]string{"q"}, command.Options{"count": 10, "timeout": 100})
			Expect(err).To(Succeed())
			Expect(jobs).To(Equal([]command.Job{{Queue: "q", ID: id, Body: "hello"}}))

			Expect(c.Working(id)).To(Equal(int64(10)))
			Expect(c.AckJob(id)).To(Equal(int64(1)))
			Expect(c.Show(id)).To(BeNil())
		})

		It("returns no jobs instead of an error when nothing is queued", func() {
			jobs, err := c.GetJob([]string{"q"}, command.Options{"nohang": true})
			Expect(err).To(Succeed())
			Expect(jobs).NotTo(BeNil())
			Expect(jobs).To(BeEmpty())
		})

		It("counts nacks", func() {
			id, err := c.AddJob("q", "hello", nil)
			Expect(err).To(Succeed())

			_, err = c.GetJob([]string{"q"}, command.Options{"nohang": true})
			Expect(err).To(Succeed())
			Expect(c.Nack(id)).To(Equal(int64(1)))

			jobs, err := c.GetJob([]string{"q"}, command.Options{"nohang": true, "withcounters": true})
			Expect(err).To(Succeed())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].Nacks).To(Equal(int64(1)))
			Expect(jobs[0].AdditionalDeliveries).To(BeZero())
		})

		It("dequeues, enqueues and deletes jobs", func() {
			id, err := c.AddJob("q", "hello", nil)
			Expect(err).To(Succeed())

			Expect(c.Dequeue(id)).To(Equal(int64(1)))
			Expect(c.QLen("q")).To(BeZero())
			Expect(c.Enqueue(id)).To(Equal(int64(1)))
			Expect(c.QLen("q")).To(Equal(int64(1)))

			details, err := c.Show(id)
			Expect(err).To(Succeed())
			state, _ := details.String("state")
			Expect(state).To(Equal("queued"))
			body, _ := details.String("body")
			Expect(body).To(Equal("hello"))

			Expect(c.DelJob(id)).To(Equal(int64(1)))
			Expect(c.FastAck(id)).To(BeZero())
		})

		It("peeks without consuming", func() {
			first, _ := c.AddJob("q", "1", nil)
			second, _ := c.AddJob("q", "2", nil)

			jobs, err := c.QPeek("q", 5)
			Expect(err).To(Succeed())
			Expect(jobs).To(HaveLen(2))
			Expect(jobs[0].ID).To(Equal(first))
			Expect(jobs[1].ID).To(Equal(second))

			jobs, err = c.QPeek("q", -1)
			Expect(err).To(Succeed())
			Expect(jobs[0].ID).To(Equal(second))

			Expect(c.QLen("q")).To(Equal(int64(2)))
		})

		It("rejects invalid options before sending anything", func() {
			_, err := c.AddJob("q", "hello", command.Options{"retry": 1.5})
			Expect(command.IsInvalidOption(err)).To(BeTrue())
		})
	})

	Describe("queues", func() {
		It("reports queue stats", func() {
			_, err := c.AddJob("q", "1", nil)
			Expect(err).To(Succeed())

			stat, err := c.QStat("q")
			Expect(err).To(Succeed())
			Expect(stat.Map()).To(HaveKeyWithValue("name", "q"))
			Expect(stat.Map()).To(HaveKeyWithValue("len", int64(1)))
			Expect(stat.Map()).To(HaveKeyWithValue("jobs-in", int64(1)))

			missing, err := c.QStat("missing")
			Expect(err).To(Succeed())
			Expect(missing).To(BeNil())
		})

		It("pauses queues", func() {
			state, err := c.Pause("q", "in")
			Expect(err).To(Succeed())
			Expect(state).To(Equal("in"))

			_, err = c.AddJob("q", "1", nil)
			var paused *protocol.PausedError
			Expect(errors.As(err, &paused)).To(BeTrue())

			// error replies leave the connection usable
			Expect(c.Manager().IsConnected()).To(BeTrue())
			Expect(c.Pause("q", "none")).To(Equal("none"))
		})

		It("scans every queue across pages", func() {
			for _, q := range []string{"a", "b", "c"} {
				_, err := c.AddJob(q, "1", nil)
				Expect(err).To(Succeed())
			}

			queues := make([]string, 0)
			err := c.ScanQueues(command.Options{"count": 1}, func(queue string) error {
				queues = append(queues, queue)
				return nil
			})
			Expect(err).To(Succeed())
			Expect(queues).To(Equal([]string{"a", "b", "c"}))
		})

		It("stops scanning on error", func() {
			_, _ = c.AddJob("a", "1", nil)
			_, _ = c.AddJob("b", "1", nil)

			stop := errors.New("stop")
			err := c.ScanQueues(nil, func(queue string) error { return stop })
			Expect(err).To(MatchError(stop))
		})

		It("scans jobs with their details", func() {
			id, err := c.AddJob("a", "body", nil)
			Expect(err).To(Succeed())
			_, err = c.AddJob("b", "body", nil)
			Expect(err).To(Succeed())

			seen := map[string]command.KeyValues{}
			err = c.ScanJobs(command.Options{"queue": "a", "reply": "all"}, func(jobID string, details command.KeyValues) error {
				seen[jobID] = details
				return nil
			})
			Expect(err).To(Succeed())
			Expect(seen).To(HaveLen(1))
			Expect(seen[id].Map()).To(HaveKeyWithValue("queue", "a"))
		})
	})

	Describe("Execute()", func() {
		It("executes commands by name", func() {
			result, err := c.Execute("qlen", command.Strings("q"), nil)
			Expect(err).To(Succeed())
			Expect(result).To(Equal(int64(0)))
		})

		It("rejects unknown commands", func() {
			_, err := c.Execute("FLUSHALL", nil, nil)
			Expect(errors.Is(err, command.ErrInvalidCommand)).To(BeTrue())
		})
	})

	It("returns server info", func() {
		info, err := c.Info()
		Expect(err).To(Succeed())
		Expect(info).To(ContainSubstring("disque_version"))
	})
})

var _ = Describe("Client with a password", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		srv    *disquetest.Server
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		srv = startServer(ctx, disquetest.Options{Password: "secret"})
	})

	AfterEach(func() {
		Expect(srv.Close()).To(Succeed())
		cancel()
	})

	It("authenticates before HELLO", func() {
		creds := credentials(srv)
		creds.Password = "secret"

		c := dial(creds)
		defer c.Close()

		Expect(c.Manager().CurrentNode().ID()).To(Equal(srv.NodeID()))
	})

	It("fails on a wrong password", func() {
		creds := credentials(srv)
		creds.Password = "nope"

		_, err := client.Dial(connection.Options{Servers: []connection.Credentials{creds}})
		Expect(connection.IsAuthenticationError(err)).To(BeTrue())
	})

	It("fails without a password", func() {
		_, err := client.Dial(connection.Options{Servers: []connection.Credentials{credentials(srv)}})
		Expect(connection.IsAuthenticationError(err)).To(BeTrue())
	})
})
