package scheduler

import "go.taskgraph.dev/core/internal/core/domain"

// pqItem is one ready task waiting for a worker slot.
type pqItem struct {
	name   domain.InternedString
	level  int
	weight int
	seq    int
}

// priorityQueue orders ready tasks by Weight descending (the task
// unlocking the longest remaining critical path runs first), then Level
// ascending, then insertion order, for a deterministic schedule across
// runs of the same graph.
type priorityQueue []pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].weight != pq[j].weight {
		return pq[i].weight > pq[j].weight
	}
	if pq[i].level != pq[j].level {
		return pq[i].level < pq[j].level
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue) Push(x any) { *pq = append(*pq, x.(pqItem)) }

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
