package tablesync

import (
	"fmt"
	"testing"

	"github.com/robinjoseph08/golib/logger"
	"github.com/romshelf/romshelf/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSync(threshold int) (*Synchronizer, *MemoryTable) {
	table := NewMemoryTable()
	return NewSynchronizer(table, logger.New(), threshold), table
}

func snapshot(n int) []*models.Game {
	games := make([]*models.Game, 0, n)
	for i := 0; i < n; i++ {
		games = append(games, game(fmt.Sprintf("g%03d.sfc", i), fmt.Sprintf("Game %d", i)))
	}
	return games
}

func TestFirstApplyReplacesWholesale(t *testing.T) {
	s, table := newTestSync(8)

	result := s.Apply(snapshot(5))

	assert.Equal(t, ModeReplace, result.Mode)
	assert.Len(t, table.Rows(), 5)
}

func TestPureUpdatesPatchInPlace(t *testing.T) {
	s, table := newTestSync(8)
	s.Apply(snapshot(20))

	table.Select("g007.sfc")
	table.SetScroll(12)

	next := snapshot(20)
	next[3].Name = "Renamed 3"
	next[7].Description = "New description"
	next[15].Rating = "4.5"

	result := s.Apply(next)

	assert.Equal(t, ModePatch, result.Mode)
	assert.Len(t, result.Delta.Updated, 3)
	assert.Empty(t, result.Delta.Added)
	assert.Empty(t, result.Delta.Removed)

	// View state survives an in-place patch.
	assert.Equal(t, "g007.sfc", table.Selected())
	assert.Equal(t, 12, table.Scroll())
	assert.Equal(t, "Renamed 3", table.Row("g003.sfc").Name)

	replaces, _ := table.Counters()
	assert.Equal(t, 1, replaces)
}

func TestPatchRedrawsExactlyOnce(t *testing.T) {
	s, table := newTestSync(8)
	s.Apply(snapshot(10))
	_, before := table.Counters()

	next := snapshot(10)
	for i := range next {
		next[i].Genre = "Platformer"
	}
	s.Apply(next)

	_, after := table.Counters()
	assert.Equal(t, before+1, after)
}

func TestIdenticalSnapshotIsNoop(t *testing.T) {
	s, table := newTestSync(8)
	s.Apply(snapshot(10))
	_, before := table.Counters()

	result := s.Apply(snapshot(10))

	assert.Equal(t, ModeNone, result.Mode)
	assert.True(t, result.Delta.Empty())
	_, after := table.Counters()
	assert.Equal(t, before, after)
}

func TestLargeSwingForcesReplace(t *testing.T) {
	s, table := newTestSync(8)
	s.Apply(snapshot(10))
	table.Select("g002.sfc")

	result := s.Apply(snapshot(30))

	assert.Equal(t, ModeReplace, result.Mode)
	assert.Len(t, table.Rows(), 30)
	assert.Empty(t, table.Selected())
}

func TestSmallStructuralChangeIsIncremental(t *testing.T) {
	s, table := newTestSync(8)
	s.Apply(snapshot(10))
	table.Select("g004.sfc")

	next := snapshot(10)[1:] // drop g000
	next = append(next, game("new.sfc", "New Game"))

	result := s.Apply(next)

	assert.Equal(t, ModePatch, result.Mode)
	assert.Equal(t, []string{"g000.sfc"}, result.Delta.Removed)
	require.Len(t, result.Delta.Added, 1)

	assert.Nil(t, table.Row("g000.sfc"))
	assert.NotNil(t, table.Row("new.sfc"))
	assert.Equal(t, "g004.sfc", table.Selected())
}

func TestMixedDeltaRebuilds(t *testing.T) {
	s, table := newTestSync(8)
	s.Apply(snapshot(10))

	next := snapshot(10)[1:]
	next[0].Name = "Changed"

	result := s.Apply(next)

	assert.Equal(t, ModeRebuild, result.Mode)
	assert.Len(t, table.Rows(), 9)
}

func TestEmptyIncomingReplacesToEmpty(t *testing.T) {
	s, table := newTestSync(8)
	s.Apply(snapshot(5))

	result := s.Apply(nil)

	assert.Equal(t, ModeReplace, result.Mode)
	assert.Empty(t, table.Rows())
}

func TestResetClearsForPlatformSwitch(t *testing.T) {
	s, table := newTestSync(8)
	s.Apply(snapshot(5))

	s.Reset("genesis")

	assert.Equal(t, "genesis", s.Platform())
	assert.Empty(t, table.Rows())

	// Post-reset the table is empty, so the next apply replaces even for
	// a single row.
	result := s.Apply(snapshot(1))
	assert.Equal(t, ModeReplace, result.Mode)
}

func TestTryBeginGuardsOverlappingRefresh(t *testing.T) {
	s, _ := newTestSync(8)

	require.True(t, s.TryBegin())
	assert.False(t, s.TryBegin())

	s.End()
	assert.True(t, s.TryBegin())
}

func TestCurrentIsIsolatedFromCallerMutation(t *testing.T) {
	s, _ := newTestSync(8)
	s.Apply(snapshot(3))

	copied := s.Current()
	copied["g000.sfc"].Name = "mutated"

	assert.Equal(t, "Game 0", s.Lookup("g000.sfc").Name)
}

func TestStoreUpdatesCacheWithoutRedraw(t *testing.T) {
	s, table := newTestSync(8)
	s.Apply(snapshot(3))
	_, before := table.Counters()

	edited := s.Lookup("g001.sfc")
	edited.Developer = "HAL"
	s.Store(edited)

	_, after := table.Counters()
	assert.Equal(t, before, after)

	// Cache caught up, so the server echoing the edit back is a no-op.
	next := snapshot(3)
	next[1].Developer = "HAL"
	result := s.Apply(next)
	assert.Equal(t, ModeNone, result.Mode)
}
