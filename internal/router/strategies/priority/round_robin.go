package priority

import (
	"sync"

	"github.com/zgsm-ai/chat-proxy/internal/types"
)

// Candidate is one endpoint with its effective weight
type Candidate struct {
	target types.UpstreamTarget
	weight int
}

// PriorityGroup holds the endpoints sharing one priority level
type PriorityGroup struct {
	priority       int
	candidates     []*Candidate
	currentWeights []int
	mu             sync.Mutex
}

func newPriorityGroup(priority int) *PriorityGroup {
	return &PriorityGroup{priority: priority}
}

func (pg *PriorityGroup) addEndpoint(c *Candidate) {
	pg.candidates = append(pg.candidates, c)
	pg.currentWeights = append(pg.currentWeights, 0)
}

// selectByRoundRobin is smooth weighted round-robin: every current weight
// grows by its configured weight, the largest wins and pays back the total.
func (pg *PriorityGroup) selectByRoundRobin() types.UpstreamTarget {
	if len(pg.candidates) == 1 {
		return pg.candidates[0].target
	}

	pg.mu.Lock()
	defer pg.mu.Unlock()

	totalWeight := 0
	selectedIdx := 0
	for i, c := range pg.candidates {
		totalWeight += c.weight
		pg.currentWeights[i] += c.weight
		if pg.currentWeights[i] > pg.currentWeights[selectedIdx] {
			selectedIdx = i
		}
	}
	pg.currentWeights[selectedIdx] -= totalWeight

	return pg.candidates[selectedIdx].target
}
