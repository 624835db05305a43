package connection

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultMarginToSwitch is how much more load a node needs over the
	// current one before it is preferred
	DefaultMarginToSwitch = 0.05

	// Priorities reported by Disque. A node at or above FailurePriority is
	// never preferred, one at PossibleFailurePriority is weighted down.
	HealthyPriority         = 1
	PossibleFailurePriority = 10
	FailurePriority         = 100
)

// Prioritizer orders nodes by preference. The manager stays on the current
// node while it comes first.
type Prioritizer interface {
	Sort(nodes []*Node, currentNodeID string) []*Node
}

// ConservativeJobCountPrioritizer prefers the nodes that produced the most
// jobs since the last switch, weighted by node health. The current node gets
// a bonus of Margin so that nodes of similar load do not cause switching
// back and forth.
type ConservativeJobCountPrioritizer struct {
	Margin float64
}

func NewConservativeJobCountPrioritizer() *ConservativeJobCountPrioritizer {
	return &ConservativeJobCountPrioritizer{Margin: DefaultMarginToSwitch}
}

func (p *ConservativeJobCountPrioritizer) Sort(nodes []*Node, currentNodeID string) []*Node {
	sorted := make([]*Node, len(nodes))
	copy(sorted, nodes)

	if len(sorted) < 2 {
		return sorted
	}

	scores := make(map[*Node]float64, len(sorted))
	for _, node := range sorted {
		score := float64(node.JobCount())
		if node.ID() == currentNodeID {
			score *= 1 + p.Margin
		}

		scores[node] = score * PriorityWeight(node.Priority())
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return scores[sorted[i]] > scores[sorted[j]]
	})

	return sorted
}

// PriorityWeight maps a Disque node priority to a score multiplier: 1 for a
// healthy node, decaying as 1 / (1 + log10(priority)) and 0 for a failed
// node.
func PriorityWeight(priority int) float64 {
	if priority < HealthyPriority {
		return 1
	}

	if priority >= FailurePriority {
		return 0
	}

	return 1 / (1 + math.Log10(float64(priority)))
}

// RandomPrioritizer shuffles the nodes. Useful to exercise failover.
type RandomPrioritizer struct {
	mu   sync.Mutex
	rand *rand.Rand
}

func NewRandomPrioritizer(source rand.Source) *RandomPrioritizer {
	if source == nil {
		source = rand.NewSource(time.Now().UnixNano())
	}

	return &RandomPrioritizer{rand: rand.New(source)}
}

func (p *RandomPrioritizer) Sort(nodes []*Node, currentNodeID string) []*Node {
	sorted := make([]*Node, len(nodes))
	copy(sorted, nodes)

	if len(sorted) < 2 {
		return sorted
	}

	p.mu.Lock()
	p.rand.Shuffle(len(sorted), func(i, j int) {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	})
	p.mu.Unlock()

	return sorted
}

// NullPrioritizer always puts the current node first, so the manager never
// switches.
type NullPrioritizer struct{}

func (NullPrioritizer) Sort(nodes []*Node, currentNodeID string) []*Node {
	sorted := make([]*Node, 0, len(nodes))

	for _, node := range nodes {
		if node.ID() == currentNodeID {
			sorted = append(sorted, node)
		}
	}

	for _, node := range nodes {
		if node.ID() != currentNodeID {
			sorted = append(sorted, node)
		}
	}

	return sorted
}

var _ Prioritizer = (*ConservativeJobCountPrioritizer)(nil)
var _ Prioritizer = (*RandomPrioritizer)(nil)
var _ Prioritizer = NullPrioritizer{}
