package testutil

import "sync"

// Sequence hands out 1, 2, 3, ... and is safe for concurrent use.
// MemoryRecords uses it for record Seq values and SequentialRunIDGenerator
// for run id suffixes, so repeated test runs see identical numbers.
type Sequence struct {
	mu sync.Mutex
	n  int64
}

// Next returns the next value.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n
}
