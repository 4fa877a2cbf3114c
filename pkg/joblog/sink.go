package joblog

import "sync"

// MemorySink is a Sink backed by an in-memory line buffer. It stands in
// for whatever surface renders the log.
type MemorySink struct {
	mu       sync.Mutex
	lines    []string
	pending  bool
	replaces int
	appends  int
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Replace(lines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append([]string(nil), lines...)
	s.replaces++
}

func (s *MemorySink) Append(lines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, lines...)
	s.appends++
}

func (s *MemorySink) SetPending(pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = pending
}

func (s *MemorySink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func (s *MemorySink) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Mutations returns how many batched replace/append calls were applied.
func (s *MemorySink) Mutations() (replaces, appends int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaces, s.appends
}
