// Package match runs metadata disambiguation sessions: a queue of games
// whose scrape results were ambiguous, walked one at a time, with an
// explicit candidate commit per game. Nothing is written until the
// operator commits, and absent candidate fields never clobber existing
// metadata.
package match

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/romshelf/romshelf/pkg/errcodes"
	"github.com/romshelf/romshelf/pkg/models"
)

// Session origins. Remote sessions come from another session's pending
// request and must be closed server-side on completion.
const (
	OriginBatch  = "batch"
	OriginSingle = "single"
	OriginRemote = "remote"
)

// API is the slice of the catalog client the manager needs.
type API interface {
	MatchCandidates(ctx context.Context, name string, preload []models.MatchCandidate) ([]models.MatchCandidate, error)
	SaveGames(ctx context.Context, games []*models.Game, manifest map[string][]string) error
	CloseMatchRequest(ctx context.Context, id string) error
}

// UI renders the disambiguation surface. ShowItem presents one game with
// its ranked candidates; ResetState clears the surface when a session
// runs to its last item or a single-item session ends. It is never called
// twice for one session, and not at all for a mid-batch close.
type UI interface {
	ShowItem(game *models.Game, candidates []models.MatchCandidate, index, total int)
	ResetState()
}

type item struct {
	game       *models.Game
	candidates []models.MatchCandidate
	fetched    bool
}

type session struct {
	origin    string
	platform  string
	requestID string
	items     []*item
	index     int
}

type Manager struct {
	api API
	log logger.Logger
	ui  UI
	// lookup resolves a path to the authoritative table row, nil when the
	// row is gone.
	lookup func(path string) *models.Game
	// onCommitted receives each game after its candidate is applied.
	onCommitted func(game *models.Game)

	mu      sync.Mutex
	session *session
}

func NewManager(api API, log logger.Logger, ui UI, lookup func(string) *models.Game, onCommitted func(*models.Game)) *Manager {
	return &Manager{
		api:         api,
		log:         log,
		ui:          ui,
		lookup:      lookup,
		onCommitted: onCommitted,
	}
}

// Active reports whether a session is open. While one is, no new session
// may start and the cross-session poller stays quiet.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// StartBatch opens a session over several games, prefetching every
// candidate list up front so navigation is instant.
func (m *Manager) StartBatch(ctx context.Context, platform string, games []*models.Game) error {
	items := make([]*item, 0, len(games))
	for _, game := range games {
		candidates, err := m.api.MatchCandidates(ctx, game.Name, nil)
		if err != nil {
			return errors.WithStack(err)
		}
		items = append(items, &item{game: game, candidates: rank(candidates), fetched: true})
	}
	return m.open(ctx, &session{origin: OriginBatch, platform: platform, items: items})
}

// StartSingle opens a session over one game, fetching candidates lazily.
func (m *Manager) StartSingle(ctx context.Context, game *models.Game) error {
	s := &session{
		origin:   OriginSingle,
		platform: game.Platform,
		items:    []*item{{game: game}},
	}
	return m.open(ctx, s)
}

// StartRemote opens a session for a pending request surfaced by another
// session. Candidates attached to the request are used as-is.
func (m *Manager) StartRemote(ctx context.Context, req *models.MatchRequest) error {
	game := m.lookup(req.GamePath)
	if game == nil {
		game = &models.Game{Path: req.GamePath, Platform: req.Platform, Name: req.GameName}
	}
	s := &session{
		origin:    OriginRemote,
		platform:  req.Platform,
		requestID: req.ID,
		items: []*item{{
			game:       game,
			candidates: rank(req.Candidates),
			fetched:    len(req.Candidates) > 0,
		}},
	}
	return m.open(ctx, s)
}

func (m *Manager) open(ctx context.Context, s *session) error {
	m.mu.Lock()
	if m.session != nil {
		m.mu.Unlock()
		return errors.WithStack(errcodes.Conflict("A disambiguation session is already open."))
	}
	m.session = s
	m.mu.Unlock()

	return m.show(ctx)
}

// show renders the current item, fetching its candidates on first visit.
func (m *Manager) show(ctx context.Context) error {
	m.mu.Lock()
	s := m.session
	if s == nil {
		m.mu.Unlock()
		return nil
	}
	it := s.items[s.index]
	index, total := s.index, len(s.items)
	m.mu.Unlock()

	if !it.fetched {
		candidates, err := m.api.MatchCandidates(ctx, it.game.Name, nil)
		if err != nil {
			return errors.WithStack(err)
		}
		m.mu.Lock()
		it.candidates = rank(candidates)
		it.fetched = true
		m.mu.Unlock()
	}

	m.ui.ShowItem(it.game, it.candidates, index, total)
	return nil
}

// Commit applies the chosen candidate to the current game and advances.
// The write to the server happens in the background; the session never
// blocks on it.
func (m *Manager) Commit(ctx context.Context, candidate models.MatchCandidate) error {
	m.mu.Lock()
	s := m.session
	if s == nil {
		m.mu.Unlock()
		return errors.WithStack(errcodes.NotFound("Disambiguation session"))
	}
	path := s.items[s.index].game.Path
	m.mu.Unlock()

	game := m.lookup(path)
	if game == nil {
		// The row vanished under us (removed by a refresh mid-session).
		// Nothing to write; move on.
		m.log.Warn("game gone before candidate commit, skipping", logger.Data{"path": path})
		return m.advance(ctx)
	}

	changed := applyCandidate(game, candidate)
	game.Dirty = true

	// The goroutine gets its own copy; game is about to be handed to
	// onCommitted and must not be written to concurrently.
	saved := game.Clone()
	go func() {
		manifest := map[string][]string{saved.Path: changed}
		if err := m.api.SaveGames(context.Background(), []*models.Game{saved}, manifest); err != nil {
			m.log.Err(err).Error("candidate save error", logger.Data{"path": saved.Path})
		}
	}()

	if m.onCommitted != nil {
		m.onCommitted(game)
	}
	return m.advance(ctx)
}

// Skip advances past the current game without committing anything.
func (m *Manager) Skip(ctx context.Context) error {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()
	return m.advance(ctx)
}

// Back re-shows the previous item from cache. No refetch.
func (m *Manager) Back() {
	m.mu.Lock()
	s := m.session
	if s == nil || s.index == 0 {
		m.mu.Unlock()
		return
	}
	s.index--
	it := s.items[s.index]
	index, total := s.index, len(s.items)
	m.mu.Unlock()

	m.ui.ShowItem(it.game, it.candidates, index, total)
}

// Cancel abandons the whole session. Uncommitted items stay untouched.
// The full UI reset only happens when the session was already on its last
// item or held a single item; closing mid-batch leaves the surface alone.
func (m *Manager) Cancel(ctx context.Context) {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.mu.Unlock()
	if s == nil {
		return
	}
	reset := len(s.items) == 1 || s.index >= len(s.items)-1
	m.finish(ctx, s, reset)
}

func (m *Manager) advance(ctx context.Context) error {
	m.mu.Lock()
	s := m.session
	if s == nil {
		m.mu.Unlock()
		return nil
	}
	s.index++
	if s.index < len(s.items) {
		m.mu.Unlock()
		return m.show(ctx)
	}
	m.session = nil
	m.mu.Unlock()

	m.finish(ctx, s, true)
	return nil
}

// finish tears down session surfaces. Remote sessions always resolve the
// server-side request so no session sees it again; the UI reset is the
// caller's call.
func (m *Manager) finish(ctx context.Context, s *session, reset bool) {
	if s.origin == OriginRemote && s.requestID != "" {
		if err := m.api.CloseMatchRequest(ctx, s.requestID); err != nil {
			m.log.Err(err).Warn("match request close error", logger.Data{"request_id": s.requestID})
		}
	}
	if reset {
		m.ui.ResetState()
	}
}

// applyCandidate copies the candidate's populated fields onto the game and
// returns the names of the fields that changed. Absent fields leave the
// game's existing metadata alone.
func applyCandidate(game *models.Game, c models.MatchCandidate) []string {
	changed := []string{}
	set := func(field string, dst *string, val string) {
		if val != "" && *dst != val {
			*dst = val
			changed = append(changed, field)
		}
	}
	set("name", &game.Name, c.Name)
	set("description", &game.Description, c.Description)
	set("developer", &game.Developer, c.Developer)
	set("publisher", &game.Publisher, c.Publisher)
	set("genre", &game.Genre, c.Genre)
	set("rating", &game.Rating, c.Rating)
	set("players", &game.Players, c.Players)
	set("external_id", &game.ExternalID, c.ExternalID)
	return changed
}

// rank orders candidates best first, stable for equal scores.
func rank(candidates []models.MatchCandidate) []models.MatchCandidate {
	out := append([]models.MatchCandidate(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
