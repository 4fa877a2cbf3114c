package tablesync

import (
	"sync"

	"github.com/romshelf/romshelf/pkg/models"
)

// MemoryTable is an Applier backed by an ordered in-memory row list. It
// models the rendered surface: Patch, Insert and Remove keep the selected
// path and scroll offset intact, Replace resets both.
type MemoryTable struct {
	mu           sync.Mutex
	rows         []*models.Game
	index        map[string]int
	selectedPath string
	scrollOffset int
	redraws      int
	replaces     int
}

func NewMemoryTable() *MemoryTable {
	return &MemoryTable{index: map[string]int{}}
}

func (t *MemoryTable) Replace(games []*models.Game) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append([]*models.Game(nil), games...)
	t.reindexLocked()
	t.selectedPath = ""
	t.scrollOffset = 0
	t.replaces++
	t.redraws++
}

func (t *MemoryTable) Insert(games []*models.Game) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append(t.rows, games...)
	t.reindexLocked()
}

func (t *MemoryTable) Patch(games []*models.Game) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, game := range games {
		if i, ok := t.index[game.Path]; ok {
			t.rows[i] = game
		}
	}
}

func (t *MemoryTable) Remove(paths []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	drop := make(map[string]bool, len(paths))
	for _, path := range paths {
		drop[path] = true
	}
	kept := t.rows[:0]
	for _, row := range t.rows {
		if !drop[row.Path] {
			kept = append(kept, row)
		}
	}
	t.rows = kept
	t.reindexLocked()
	if drop[t.selectedPath] {
		t.selectedPath = ""
	}
}

func (t *MemoryTable) Redraw() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.redraws++
}

func (t *MemoryTable) reindexLocked() {
	t.index = make(map[string]int, len(t.rows))
	for i, row := range t.rows {
		t.index[row.Path] = i
	}
}

// Select marks a row as selected by path.
func (t *MemoryTable) Select(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selectedPath = path
}

// SetScroll records the scroll offset.
func (t *MemoryTable) SetScroll(offset int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scrollOffset = offset
}

func (t *MemoryTable) Selected() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selectedPath
}

func (t *MemoryTable) Scroll() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scrollOffset
}

// Rows returns the rows in display order.
func (t *MemoryTable) Rows() []*models.Game {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*models.Game(nil), t.rows...)
}

// Row returns the rendered row for a path.
func (t *MemoryTable) Row(path string) *models.Game {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i, ok := t.index[path]; ok {
		return t.rows[i]
	}
	return nil
}

// Counters reports how many full replaces and redraws have happened.
func (t *MemoryTable) Counters() (replaces, redraws int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.replaces, t.redraws
}
