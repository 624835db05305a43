package command_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/luma/disq/command"
	"github.com/luma/disq/protocol"
)

func mustBuild(cmd *command.Command, err error) *command.Command {
	ExpectWithOffset(1, err).To(Succeed())
	return cmd
}

var _ = Describe("Responses", func() {
	Describe("jobs", func() {
		It("parses queue, id and body tuples in order", func() {
			cmd := mustBuild(command.NewGetJob([]string{"q1", "q2"}, nil))

			result, err := cmd.Parse(protocol.Array(
				protocol.Strings("q1", "D-00000001-a", "body1"),
				protocol.Strings("q2", "D-00000002-b", "body2"),
			))
			Expect(err).To(Succeed())
			Expect(result).To(Equal([]command.Job{
				{Queue: "q1", ID: "D-00000001-a", Body: "body1"},
				{Queue: "q2", ID: "D-00000002-b", Body: "body2"},
			}))
		})

		It("parses a nil reply as no jobs", func() {
			cmd := mustBuild(command.NewGetJob([]string{"q"}, command.Options{"nohang": true}))

			result, err := cmd.Parse(protocol.Nil())
			Expect(err).To(Succeed())
			Expect(result).To(BeEmpty())
		})

		It("rejects tuples of the wrong size", func() {
			cmd := mustBuild(command.NewQPeek("q", 1))

			_, err := cmd.Parse(protocol.Array(protocol.Strings("q", "id")))

			var respErr *command.InvalidResponseError
			Expect(errors.As(err, &respErr)).To(BeTrue())
			Expect(respErr.Command).To(Equal(command.QPEEK))
			Expect(respErr.Body).To(Equal(`[["q", "id"]]`))
		})

		It("rejects non array replies", func() {
			cmd := mustBuild(command.NewQPeek("q", 1))

			_, err := cmd.Parse(protocol.String("nope"))
			Expect(command.IsInvalidResponse(err)).To(BeTrue())
		})

		It("parses id and body tuples", func() {
			cmd := mustBuild(command.NewQPeek("q", 1))

			jobs, err := command.ParseJobs(cmd, protocol.Array(protocol.Strings("D-1", "body")), command.JobLayout{})
			Expect(err).To(Succeed())
			Expect(jobs).To(Equal([]command.Job{{ID: "D-1", Body: "body"}}))
		})

		Describe("with counters", func() {
			var cmd *command.Command

			BeforeEach(func() {
				cmd = mustBuild(command.NewGetJob([]string{"q"}, command.Options{"withcounters": true}))
			})

			It("strips the counter labels into fields", func() {
				result, err := cmd.Parse(protocol.Array(protocol.Array(
					protocol.String("q"),
					protocol.String("D-1"),
					protocol.String("body"),
					protocol.String("nacks"),
					protocol.Integer(2),
					protocol.String("additional-deliveries"),
					protocol.Integer(1),
				)))
				Expect(err).To(Succeed())
				Expect(result).To(Equal([]command.Job{
					{Queue: "q", ID: "D-1", Body: "body", Nacks: 2, AdditionalDeliveries: 1},
				}))
			})

			It("rejects misplaced labels", func() {
				_, err := cmd.Parse(protocol.Array(protocol.Array(
					protocol.String("q"),
					protocol.String("D-1"),
					protocol.String("body"),
					protocol.String("additional-deliveries"),
					protocol.Integer(1),
					protocol.String("nacks"),
					protocol.Integer(2),
				)))
				Expect(command.IsInvalidResponse(err)).To(BeTrue())
			})

			It("rejects non numeric counters", func() {
				_, err := cmd.Parse(protocol.Array(protocol.Array(
					protocol.String("q"),
					protocol.String("D-1"),
					protocol.String("body"),
					protocol.String("nacks"),
					protocol.String("two"),
					protocol.String("additional-deliveries"),
					protocol.Integer(1),
				)))
				Expect(command.IsInvalidResponse(err)).To(BeTrue())
			})

			It("rejects tuples without counters", func() {
				_, err := cmd.Parse(protocol.Array(protocol.Strings("q", "D-1", "body")))
				Expect(command.IsInvalidResponse(err)).To(BeTrue())
			})
		})

		It("extracts the node prefix from job ids", func() {
			prefix, ok := command.JobNodePrefix("D-dcb833cf-8YL1NT17e9+wsA/09NqxscQI-05a1")
			Expect(ok).To(BeTrue())
			Expect(prefix).To(Equal("dcb833cf"))

			_, ok = command.JobNodePrefix("nope")
			Expect(ok).To(BeFalse())

			Expect(command.NodePrefix("dcb833cf0123")).To(Equal("dcb833cf"))
		})
	})

	Describe("HELLO", func() {
		var cmd *command.Command

		BeforeEach(func() {
			cmd = mustBuild(command.NewHello())
		})

		It("parses the version, id and nodes", func() {
			result, err := cmd.Parse(protocol.Array(
				protocol.String("v"),
				protocol.String("id"),
				protocol.Strings("id", "host", "port", "v"),
			))
			Expect(err).To(Succeed())
			Expect(result).To(Equal(&command.Hello{
				Version: "v",
				ID:      "id",
				Nodes:   []command.HelloNode{{ID: "id", Host: "host", Port: "port", Version: "v"}},
			}))
		})

		It("accepts integer versions and ports", func() {
			result, err := cmd.Parse(protocol.Array(
				protocol.Integer(1),
				protocol.String("id"),
				protocol.Array(protocol.String("id"), protocol.String("127.0.0.1"), protocol.Integer(7711), protocol.Integer(10)),
			))
			Expect(err).To(Succeed())

			hello := result.(*command.Hello)
			Expect(hello.Version).To(Equal("1"))

			node, ok := hello.Node("id")
			Expect(ok).To(BeTrue())
			Expect(node.PortNumber()).To(Equal(7711))
			Expect(node.Priority()).To(Equal(10))
		})

		It("rejects replies with fewer than 3 elements", func() {
			_, err := cmd.Parse(protocol.Strings("v", "id"))
			Expect(command.IsInvalidResponse(err)).To(BeTrue())
		})

		It("rejects nodes without exactly 4 fields", func() {
			_, err := cmd.Parse(protocol.Array(
				protocol.String("v"),
				protocol.String("id"),
				protocol.Strings("id", "host", "port"),
			))
			Expect(command.IsInvalidResponse(err)).To(BeTrue())

			_, err = cmd.Parse(protocol.Array(
				protocol.String("v"),
				protocol.String("id"),
				protocol.Strings("id", "host", "port", "v", "extra"),
			))
			Expect(command.IsInvalidResponse(err)).To(BeTrue())
		})
	})

	Describe("cursors", func() {
		DescribeTable("finished iff the next cursor is 0",
			func(cursor string, finished bool) {
				cmd := mustBuild(command.NewQScan(0, nil))

				result, err := cmd.Parse(protocol.Array(protocol.String(cursor), protocol.Strings("q1", "q2")))
				Expect(err).To(Succeed())

				page := result.(*command.CursorPage)
				Expect(page.Finished).To(Equal(finished))
				Expect(page.Items).To(Equal([]string{"q1", "q2"}))
			},
			Entry("0", "0", true),
			Entry("1", "1", false),
			Entry("large", "4294967296", false),
		)

		It("keeps the next cursor", func() {
			cmd := mustBuild(command.NewJScan(0, nil))

			result, err := cmd.Parse(protocol.Array(protocol.String("17"), protocol.Strings("D-1")))
			Expect(err).To(Succeed())
			Expect(result).To(Equal(&command.CursorPage{NextCursor: 17, Items: []string{"D-1"}}))
		})

		It("rejects non numeric cursors", func() {
			cmd := mustBuild(command.NewQScan(0, nil))

			_, err := cmd.Parse(protocol.Array(protocol.String("abc"), protocol.Strings()))
			Expect(command.IsInvalidResponse(err)).To(BeTrue())
		})

		It("parses job details for REPLY all", func() {
			cmd := mustBuild(command.NewJScan(0, command.Options{"reply": "all"}))

			result, err := cmd.Parse(protocol.Array(
				protocol.String("0"),
				protocol.Array(protocol.Array(protocol.String("id"), protocol.String("D-1"), protocol.String("ttl"), protocol.Integer(10))),
			))
			Expect(err).To(Succeed())

			page := result.(*command.CursorPage)
			Expect(page.Finished).To(BeTrue())
			Expect(page.Items).To(Equal([]string{"D-1"}))
			Expect(page.Jobs).To(HaveLen(1))

			ttl, ok := page.Jobs[0].Int("ttl")
			Expect(ok).To(BeTrue())
			Expect(ttl).To(Equal(int64(10)))
		})
	})

	Describe("key values", func() {
		It("folds flat replies in order", func() {
			cmd := mustBuild(command.NewQStat("q"))

			result, err := cmd.Parse(protocol.Array(
				protocol.String("name"), protocol.String("q"),
				protocol.String("len"), protocol.Integer(3),
				protocol.String("pause"), protocol.String("none"),
			))
			Expect(err).To(Succeed())

			kv := result.(command.KeyValues)
			Expect(kv).To(Equal(command.KeyValues{
				{Key: "name", Value: "q"},
				{Key: "len", Value: int64(3)},
				{Key: "pause", Value: "none"},
			}))
			Expect(kv.Map()).To(HaveKeyWithValue("len", int64(3)))
		})

		It("maps a missing job to nil", func() {
			cmd := mustBuild(command.NewShow("D-1"))

			result, err := cmd.Parse(protocol.Nil())
			Expect(err).To(Succeed())
			Expect(result).To(BeNil())
		})

		It("rejects odd lengths", func() {
			cmd := mustBuild(command.NewShow("D-1"))

			_, err := cmd.Parse(protocol.Strings("id", "D-1", "queue"))
			Expect(command.IsInvalidResponse(err)).To(BeTrue())
		})
	})

	Describe("scalars", func() {
		It("parses integers", func() {
			cmd := mustBuild(command.NewQLen("q"))

			result, err := cmd.Parse(protocol.Integer(3))
			Expect(err).To(Succeed())
			Expect(result).To(Equal(int64(3)))

			_, err = cmd.Parse(protocol.String("3"))
			Expect(command.IsInvalidResponse(err)).To(BeTrue())
		})

		It("maps a declined ADDJOB to nil", func() {
			cmd := mustBuild(command.NewAddJob("q", "body", nil))

			result, err := cmd.Parse(protocol.Nil())
			Expect(err).To(Succeed())
			Expect(result).To(BeNil())

			result, err = cmd.Parse(protocol.String("D-1"))
			Expect(err).To(Succeed())
			Expect(result).To(Equal("D-1"))
		})

		It("parses INFO as a string", func() {
			cmd := mustBuild(command.NewInfo())

			_, err := cmd.Parse(protocol.Integer(1))
			Expect(command.IsInvalidResponse(err)).To(BeTrue())
		})
	})
})
