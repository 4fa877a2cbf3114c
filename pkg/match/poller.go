package match

import (
	"context"
	"time"

	"github.com/robinjoseph08/golib/logger"
	"github.com/romshelf/romshelf/pkg/models"
)

// PendingAPI polls for cross-session disambiguation requests.
type PendingAPI interface {
	PendingMatchRequest(ctx context.Context) (*models.MatchRequest, error)
}

// Poller surfaces pending requests from other sessions. It only polls
// while no local session is open: an open session owns the disambiguation
// surface outright.
type Poller struct {
	api      PendingAPI
	mgr      *Manager
	log      logger.Logger
	interval time.Duration

	shutdown chan struct{}
	done     chan struct{}
}

func NewPoller(api PendingAPI, mgr *Manager, log logger.Logger, interval time.Duration) *Poller {
	return &Poller{
		api:      api,
		mgr:      mgr,
		log:      log,
		interval: interval,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *Poller) Start() {
	go p.run()
}

func (p *Poller) Shutdown() {
	close(p.shutdown)
	<-p.done
}

func (p *Poller) run() {
	defer close(p.done)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-p.shutdown:
			return
		case <-timer.C:
			p.Tick(context.Background())
			timer.Reset(p.interval)
		}
	}
}

// Tick performs one poll cycle.
func (p *Poller) Tick(ctx context.Context) {
	if p.mgr.Active() {
		return
	}

	req, err := p.api.PendingMatchRequest(ctx)
	if err != nil {
		p.log.Err(err).Warn("pending match poll error")
		return
	}
	if req == nil {
		return
	}

	p.log.Info("pending match request surfaced", logger.Data{
		"request_id": req.ID,
		"platform":   req.Platform,
		"path":       req.GamePath,
	})
	if err := p.mgr.StartRemote(ctx, req); err != nil {
		p.log.Err(err).Warn("remote match session open error", logger.Data{"request_id": req.ID})
	}
}
