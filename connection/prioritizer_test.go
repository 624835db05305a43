package connection_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/disq/connection"
)

func ids(nodes []*connection.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, node.ID())
	}

	return out
}

var _ = Describe("Prioritizers", func() {
	Describe("ConservativeJobCountPrioritizer", func() {
		prioritizer := connection.NewConservativeJobCountPrioritizer()

		It("keeps the current node within the margin", func() {
			current := connection.NewTestNode("current", 1, 100)
			candidate := connection.NewTestNode("candidate", 1, 104)

			sorted := prioritizer.Sort([]*connection.Node{candidate, current}, "current")
			Expect(ids(sorted)).To(Equal([]string{"current", "candidate"}))
		})

		It("prefers a candidate beyond the margin", func() {
			current := connection.NewTestNode("current", 1, 100)
			candidate := connection.NewTestNode("candidate", 1, 106)

			sorted := prioritizer.Sort([]*connection.Node{current, candidate}, "current")
			Expect(ids(sorted)).To(Equal([]string{"candidate", "current"}))
		})

		It("down weights unhealthy nodes", func() {
			current := connection.NewTestNode("current", 1, 100)
			flaky := connection.NewTestNode("flaky", 10, 150)
			failing := connection.NewTestNode("failing", 100, 1000)

			sorted := prioritizer.Sort([]*connection.Node{failing, flaky, current}, "current")
			Expect(ids(sorted)).To(Equal([]string{"current", "flaky", "failing"}))
		})

		It("keeps the order of ties", func() {
			a := connection.NewTestNode("a", 1, 10)
			b := connection.NewTestNode("b", 1, 10)
			c := connection.NewTestNode("c", 1, 10)

			sorted := prioritizer.Sort([]*connection.Node{a, b, c}, "")
			Expect(ids(sorted)).To(Equal([]string{"a", "b", "c"}))
		})

		It("leaves a single node alone", func() {
			only := connection.NewTestNode("only", 100, 0)

			Expect(ids(prioritizer.Sort([]*connection.Node{only}, "other"))).To(Equal([]string{"only"}))
		})

		It("uses a custom margin", func() {
			p := &connection.ConservativeJobCountPrioritizer{Margin: 0.5}
			current := connection.NewTestNode("current", 1, 100)
			candidate := connection.NewTestNode("candidate", 1, 140)

			sorted := p.Sort([]*connection.Node{candidate, current}, "current")
			Expect(ids(sorted)).To(Equal([]string{"current", "candidate"}))
		})
	})

	Describe("PriorityWeight", func() {
		It("weights healthy nodes fully", func() {
			Expect(connection.PriorityWeight(1)).To(Equal(1.0))
			Expect(connection.PriorityWeight(0)).To(Equal(1.0))
			Expect(connection.PriorityWeight(-5)).To(Equal(1.0))
		})

		It("decays with the log of the priority", func() {
			Expect(connection.PriorityWeight(connection.PossibleFailurePriority)).To(BeNumerically("~", 0.5, 1e-9))
			Expect(connection.PriorityWeight(50)).To(BeNumerically("<", 0.5))
		})

		It("drops failed nodes", func() {
			Expect(connection.PriorityWeight(connection.FailurePriority)).To(Equal(0.0))
			Expect(connection.PriorityWeight(connection.FailurePriority - 1)).To(BeNumerically(">", 0.0))
			Expect(connection.PriorityWeight(1000)).To(Equal(0.0))
		})
	})

	Describe("RandomPrioritizer", func() {
		It("shuffles every node", func() {
			nodes := []*connection.Node{
				connection.NewTestNode("a", 1, 0),
				connection.NewTestNode("b", 1, 0),
				connection.NewTestNode("c", 1, 0),
				connection.NewTestNode("d", 1, 0),
			}

			prioritizer := connection.NewRandomPrioritizer(rand.NewSource(1))

			seen := map[string]bool{}
			for i := 0; i < 50; i++ {
				sorted := prioritizer.Sort(nodes, "a")
				Expect(ids(sorted)).To(ConsistOf("a", "b", "c", "d"))
				seen[sorted[0].ID()] = true
			}

			Expect(len(seen)).To(BeNumerically(">", 1))
			Expect(ids(nodes)).To(Equal([]string{"a", "b", "c", "d"}))
		})
	})

	Describe("NullPrioritizer", func() {
		It("moves the current node first and keeps the others in place", func() {
			nodes := []*connection.Node{
				connection.NewTestNode("a", 1, 50),
				connection.NewTestNode("b", 1, 0),
				connection.NewTestNode("c", 1, 10),
			}

			sorted := connection.NullPrioritizer{}.Sort(nodes, "b")
			Expect(ids(sorted)).To(Equal([]string{"b", "a", "c"}))
		})
	})
})
