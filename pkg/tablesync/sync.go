package tablesync

import (
	"sync"

	"github.com/robinjoseph08/golib/logger"
	"github.com/romshelf/romshelf/pkg/models"
)

// Apply modes.
const (
	ModeNone    = "none"
	ModeReplace = "replace"
	ModePatch   = "patch"
	ModeRebuild = "rebuild"
)

// Applier receives reconciliation output. Implementations render rows and
// are expected to preserve selection and scroll position across Patch,
// Insert and Remove; Replace may reset them.
type Applier interface {
	// Replace rebuilds the table from scratch.
	Replace(games []*models.Game)
	// Insert adds new rows.
	Insert(games []*models.Game)
	// Patch updates existing rows in place, keyed by path.
	Patch(games []*models.Game)
	// Remove deletes rows by path.
	Remove(paths []string)
	// Redraw flushes accumulated row changes to the display once.
	Redraw()
}

// ApplyResult reports how a snapshot was reconciled.
type ApplyResult struct {
	Mode  string
	Delta Delta
}

// Synchronizer owns the authoritative keyed copy of the rendered table
// and the policy for applying new snapshots to it.
type Synchronizer struct {
	applier   Applier
	log       logger.Logger
	threshold int

	mu       sync.Mutex
	inFlight bool
	platform string
	current  map[string]*models.Game
}

func NewSynchronizer(applier Applier, log logger.Logger, threshold int) *Synchronizer {
	return &Synchronizer{
		applier:   applier,
		log:       log,
		threshold: threshold,
		current:   map[string]*models.Game{},
	}
}

// TryBegin claims the single refresh slot. The caller must End when its
// fetch-and-apply cycle finishes. A false return means a refresh is
// already running and this one should be skipped, not queued.
func (s *Synchronizer) TryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		s.log.Debug("refresh already in flight, skipping")
		return false
	}
	s.inFlight = true
	return true
}

func (s *Synchronizer) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
}

// Platform returns the platform the current table belongs to.
func (s *Synchronizer) Platform() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.platform
}

// Reset clears the table for a platform switch. The next Apply starts
// from empty and therefore replaces wholesale.
func (s *Synchronizer) Reset(platform string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.platform = platform
	s.current = map[string]*models.Game{}
	s.applier.Replace(nil)
}

// Apply reconciles an authoritative snapshot into the table.
//
// A full replace happens when the table is empty, the snapshot is empty,
// or the row-count swing exceeds the threshold; incremental work would
// cost more than it saves there. A delta that mixes structural changes
// with field updates also rebuilds, since interleaving the two cannot
// keep row identity stable. Pure field updates patch rows in place with a
// single redraw, preserving view state.
func (s *Synchronizer) Apply(incoming []*models.Game) ApplyResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	delta := Diff(s.current, incoming)

	data := logger.Data{
		"platform": s.platform,
		"added":    len(delta.Added),
		"updated":  len(delta.Updated),
		"removed":  len(delta.Removed),
	}

	swing := len(incoming) - len(s.current)
	if swing < 0 {
		swing = -swing
	}

	switch {
	case delta.Empty():
		s.log.Debug("snapshot identical, nothing to apply", data)
		return ApplyResult{Mode: ModeNone, Delta: delta}

	case len(s.current) == 0 || len(incoming) == 0 || swing > s.threshold:
		s.replaceLocked(incoming)
		s.log.Info("table replaced", data)
		return ApplyResult{Mode: ModeReplace, Delta: delta}

	case delta.Structural() && len(delta.Updated) > 0:
		s.replaceLocked(incoming)
		s.log.Info("mixed delta, table rebuilt", data)
		return ApplyResult{Mode: ModeRebuild, Delta: delta}

	case delta.Structural():
		if len(delta.Added) > 0 {
			s.applier.Insert(cloneAll(delta.Added))
		}
		if len(delta.Removed) > 0 {
			s.applier.Remove(delta.Removed)
		}
		s.applier.Redraw()
		s.storeLocked(delta)
		s.log.Info("table rows inserted and removed", data)
		return ApplyResult{Mode: ModePatch, Delta: delta}

	default:
		s.applier.Patch(cloneAll(delta.Updated))
		s.applier.Redraw()
		s.storeLocked(delta)
		s.log.Info("table rows patched in place", data)
		return ApplyResult{Mode: ModePatch, Delta: delta}
	}
}

// Current returns a snapshot copy of the authoritative table state.
func (s *Synchronizer) Current() map[string]*models.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*models.Game, len(s.current))
	for path, game := range s.current {
		out[path] = game.Clone()
	}
	return out
}

// Lookup returns the authoritative copy of one row.
func (s *Synchronizer) Lookup(path string) *models.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.current[path]
	if !ok {
		return nil
	}
	return game.Clone()
}

// Store overwrites one row in the authoritative cache without touching
// the display. Used after a local edit is accepted by the server.
func (s *Synchronizer) Store(game *models.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[game.Path] = game.Clone()
}

// UpsertRow stores one row and renders it immediately. Used when a local
// edit should show before the next authoritative fetch lands.
func (s *Synchronizer) UpsertRow(game *models.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.current[game.Path]
	s.current[game.Path] = game.Clone()
	if existed {
		s.applier.Patch([]*models.Game{game.Clone()})
	} else {
		s.applier.Insert([]*models.Game{game.Clone()})
	}
	s.applier.Redraw()
}

// Len returns the number of rows in the authoritative cache.
func (s *Synchronizer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.current)
}

func (s *Synchronizer) replaceLocked(incoming []*models.Game) {
	next := make(map[string]*models.Game, len(incoming))
	dedup := make([]*models.Game, 0, len(incoming))
	for _, game := range incoming {
		if _, seen := next[game.Path]; !seen {
			dedup = append(dedup, game)
		}
		next[game.Path] = game.Clone()
	}
	// Last-wins for duplicate paths, same as the diff.
	for i, game := range dedup {
		dedup[i] = next[game.Path].Clone()
	}
	s.current = next
	s.applier.Replace(dedup)
}

func (s *Synchronizer) storeLocked(delta Delta) {
	for _, game := range delta.Added {
		s.current[game.Path] = game.Clone()
	}
	for _, game := range delta.Updated {
		s.current[game.Path] = game.Clone()
	}
	for _, path := range delta.Removed {
		delete(s.current, path)
	}
}

func cloneAll(games []*models.Game) []*models.Game {
	out := make([]*models.Game, len(games))
	for i, game := range games {
		out[i] = game.Clone()
	}
	return out
}
