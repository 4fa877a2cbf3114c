// Package controller funnels every refresh trigger (job completions,
// broadcast notifications, reconnects, local edits) into one idempotent
// fetch-and-reconcile path, and owns platform switching.
package controller

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/romshelf/romshelf/pkg/models"
	"github.com/romshelf/romshelf/pkg/tablesync"
)

// GamesAPI fetches authoritative snapshots.
type GamesAPI interface {
	ListGames(ctx context.Context, platform string) ([]*models.Game, error)
}

// Membership asserts broadcast channel scope.
type Membership interface {
	Join(platform string) error
}

// LogFeeds is the open log stream, torn down on platform switches.
type LogFeeds interface {
	Close()
}

// PrefStore persists the last viewed platform.
type PrefStore interface {
	SaveLastPlatform(ctx context.Context, profile, platform string) error
}

type Controller struct {
	api        GamesAPI
	sync       *tablesync.Synchronizer
	membership Membership
	logs       LogFeeds
	prefStore  PrefStore
	profile    string
	log        logger.Logger
}

func New(api GamesAPI, sync *tablesync.Synchronizer, membership Membership, logs LogFeeds, prefStore PrefStore, profile string, log logger.Logger) *Controller {
	return &Controller{
		api:        api,
		sync:       sync,
		membership: membership,
		logs:       logs,
		prefStore:  prefStore,
		profile:    profile,
		log:        log,
	}
}

// Platform returns the platform currently in view.
func (ctrl *Controller) Platform() string {
	return ctrl.sync.Platform()
}

// RowCount returns how many rows the table holds.
func (ctrl *Controller) RowCount() int {
	return ctrl.sync.Len()
}

// RefreshPlatform re-fetches the authoritative snapshot for a platform and
// reconciles it into the table. Triggers for other platforms and triggers
// arriving while a refresh is in flight are dropped, not queued; the next
// trigger sees fresh state anyway.
func (ctrl *Controller) RefreshPlatform(ctx context.Context, platform string) error {
	if platform != ctrl.sync.Platform() {
		ctrl.log.Debug("refresh trigger for platform not in view, ignoring", logger.Data{"platform": platform})
		return nil
	}
	if !ctrl.sync.TryBegin() {
		return nil
	}
	defer ctrl.sync.End()

	games, err := ctrl.api.ListGames(ctx, platform)
	if err != nil {
		return errors.WithStack(err)
	}

	// The platform may have switched while the fetch was out.
	if platform != ctrl.sync.Platform() {
		ctrl.log.Info("platform switched mid-refresh, discarding snapshot", logger.Data{"platform": platform})
		return nil
	}

	result := ctrl.sync.Apply(games)
	ctrl.log.Debug("refresh applied", logger.Data{"platform": platform, "mode": result.Mode})
	return nil
}

// SwitchPlatform moves the view to another platform: the open log feed is
// closed, channel membership reasserted, the table rebuilt from a full
// fetch, and the choice persisted for the next session.
func (ctrl *Controller) SwitchPlatform(ctx context.Context, platform string) error {
	if platform == ctrl.sync.Platform() {
		return nil
	}

	ctrl.logs.Close()

	if err := ctrl.membership.Join(platform); err != nil {
		// Membership is reasserted on the next reconnect; the fetch below
		// still serves the switch.
		ctrl.log.Err(err).Warn("channel join error", logger.Data{"platform": platform})
	}

	ctrl.sync.Reset(platform)

	if err := ctrl.RefreshPlatform(ctx, platform); err != nil {
		return err
	}

	if err := ctrl.prefStore.SaveLastPlatform(ctx, ctrl.profile, platform); err != nil {
		ctrl.log.Err(err).Warn("platform preference save error", logger.Data{"platform": platform})
	}

	ctrl.log.Info("platform switched", logger.Data{"platform": platform})
	return nil
}

// HandleStateChanged reacts to a broadcast scope notification. The payload
// names what changed but the refresh always re-fetches the authoritative
// snapshot rather than trusting it.
func (ctrl *Controller) HandleStateChanged(ev models.StateChanged) {
	if err := ctrl.RefreshPlatform(context.Background(), ev.Platform); err != nil {
		ctrl.log.Err(err).Warn("state change refresh error", logger.Data{"platform": ev.Platform, "action": ev.Action})
	}
}

// HandleJobCompleted reacts to a supervisor completion.
func (ctrl *Controller) HandleJobCompleted(job *models.Job) {
	if err := ctrl.RefreshPlatform(context.Background(), job.Platform); err != nil {
		ctrl.log.Err(err).Warn("job completion refresh error", logger.Data{"job_id": job.ID, "platform": job.Platform})
	}
}

// HandleReconnect re-fetches after a broadcast reconnect, since anything
// could have been missed while the channel was down.
func (ctrl *Controller) HandleReconnect() {
	platform := ctrl.sync.Platform()
	if platform == "" {
		return
	}
	if err := ctrl.RefreshPlatform(context.Background(), platform); err != nil {
		ctrl.log.Err(err).Warn("reconnect refresh error", logger.Data{"platform": platform})
	}
}

// HandleCommitted renders a just-committed edit immediately instead of
// waiting for the next authoritative fetch to echo it back.
func (ctrl *Controller) HandleCommitted(game *models.Game) {
	if game.Platform != "" && game.Platform != ctrl.sync.Platform() {
		return
	}
	ctrl.sync.UpsertRow(game)
}
