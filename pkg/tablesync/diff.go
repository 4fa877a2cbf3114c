// Package tablesync reconciles the rendered game table with authoritative
// fetch results. The diff itself is a pure function over keyed snapshots;
// the synchronizer around it decides between incremental patching and a
// full rebuild and guards against overlapping refreshes.
package tablesync

import (
	"sort"

	"github.com/romshelf/romshelf/pkg/models"
)

// Delta is the keyed difference between the current table and an incoming
// snapshot. Updated entries carry the full incoming record, not a field
// mask.
type Delta struct {
	Added   []*models.Game
	Updated []*models.Game
	Removed []string
}

// Empty reports whether the delta carries no changes.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}

// Structural reports whether the delta adds or removes rows.
func (d Delta) Structural() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0
}

// Diff compares the current keyed state against an incoming snapshot.
// Duplicate paths in the snapshot collapse last-wins. Bookkeeping fields
// outside the display subset never produce an update.
func Diff(current map[string]*models.Game, incoming []*models.Game) Delta {
	next := make(map[string]*models.Game, len(incoming))
	order := make([]string, 0, len(incoming))
	for _, game := range incoming {
		if _, seen := next[game.Path]; !seen {
			order = append(order, game.Path)
		}
		next[game.Path] = game
	}

	delta := Delta{}
	for _, path := range order {
		game := next[path]
		cur, ok := current[path]
		if !ok {
			delta.Added = append(delta.Added, game)
			continue
		}
		if !displayEqual(cur, game) {
			delta.Updated = append(delta.Updated, game)
		}
	}

	for path := range current {
		if _, ok := next[path]; !ok {
			delta.Removed = append(delta.Removed, path)
		}
	}
	sort.Strings(delta.Removed)

	return delta
}

// displayEqual compares only the fields the table renders.
func displayEqual(a, b *models.Game) bool {
	return a.Name == b.Name &&
		a.Description == b.Description &&
		a.Developer == b.Developer &&
		a.Publisher == b.Publisher &&
		a.Genre == b.Genre &&
		a.Rating == b.Rating &&
		a.Players == b.Players &&
		a.ReleaseDate == b.ReleaseDate &&
		a.ExternalID == b.ExternalID &&
		a.BoxartPath == b.BoxartPath &&
		a.VideoPath == b.VideoPath &&
		a.WheelPath == b.WheelPath &&
		a.ManualPath == b.ManualPath
}
