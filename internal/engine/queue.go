package engine

import "github.com/roach88/procflow/internal/ir"

// blockage records the ancestor that stopped a subtree.
type blockage struct {
	nodeID  string
	outcome ir.Outcome // Skipped or Failed
}

// workItem is a node waiting to be processed, paired with the snapshot its
// trigger is evaluated against.
type workItem struct {
	node    ir.ProcessNode
	parent  ir.EntitySnapshot
	depth   int
	blocked *blockage // Non-nil when an ancestor was skipped or failed
}

// workQueue is the FIFO queue of a run.
//
// It is owned by a single run and is not safe for concurrent use.
type workQueue struct {
	items []workItem
	head  int
}

func newWorkQueue() *workQueue {
	return &workQueue{items: make([]workItem, 0, 16)}
}

// Enqueue adds an item to the back of the queue.
func (q *workQueue) Enqueue(item workItem) {
	q.items = append(q.items, item)
}

// TryDequeue removes and returns the front item.
// Returns (workItem{}, false) when the queue is empty.
func (q *workQueue) TryDequeue() (workItem, bool) {
	if q.head >= len(q.items) {
		return workItem{}, false
	}
	item := q.items[q.head]
	q.items[q.head] = workItem{} // Release the snapshot for GC
	q.head++
	return item, true
}

// Len returns the number of queued items.
func (q *workQueue) Len() int {
	return len(q.items) - q.head
}
