package main

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/romshelf/romshelf/pkg/broadcast"
	"github.com/romshelf/romshelf/pkg/config"
	"github.com/romshelf/romshelf/pkg/controller"
	"github.com/romshelf/romshelf/pkg/database"
	"github.com/romshelf/romshelf/pkg/gameapi"
	"github.com/romshelf/romshelf/pkg/joblog"
	"github.com/romshelf/romshelf/pkg/match"
	"github.com/romshelf/romshelf/pkg/migrations"
	"github.com/romshelf/romshelf/pkg/models"
	"github.com/romshelf/romshelf/pkg/prefs"
	"github.com/romshelf/romshelf/pkg/statusapi"
	"github.com/romshelf/romshelf/pkg/tablesync"
	"github.com/romshelf/romshelf/pkg/tasks"
	"github.com/romshelf/romshelf/pkg/version"
)

const prefProfile = "default"

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting romshelf console", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	prefService := prefs.NewService(db)
	viewPrefs, err := prefService.Get(ctx, prefProfile)
	if err != nil {
		log.Err(err).Fatal("preferences error")
	}

	api := gameapi.New(cfg, log)

	table := tablesync.NewMemoryTable()
	syncr := tablesync.NewSynchronizer(table, log, cfg.SyncRowThreshold)

	logSink := joblog.NewMemorySink()
	logs := joblog.NewConsumer(joblog.NewDialer(cfg), logSink, log, cfg.LogFlushDebounce, cfg.LogMaxLines)

	bc := broadcast.New(cfg, log)

	ctrl := controller.New(api, syncr, bc, logs, prefService, prefProfile, log)

	sup := tasks.New(api, log, cfg.JobPollInterval, ctrl.Platform, ctrl.HandleJobCompleted)

	matchUI := &logUI{log: log}
	matcher := match.NewManager(api, log, matchUI, syncr.Lookup, ctrl.HandleCommitted)
	matchPoller := match.NewPoller(api, matcher, log, cfg.MatchPollInterval)

	bc.OnStateChanged(ctrl.HandleStateChanged)
	bc.OnJobCompleted(func(_ models.JobCompleted) {
		// The poll loop is authoritative for completion handling; the push
		// notification just collapses the poll latency.
		go sup.Poll(context.Background())
	})
	bc.OnReconnect(ctrl.HandleReconnect)

	srv, err := statusapi.New(cfg, sup, ctrl)
	if err != nil {
		log.Err(err).Fatal("status api error")
	}

	graceful := signals.Setup()

	go func() {
		log.Info("status api started", logger.Data{"addr": srv.Addr})
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("status api stopped")
		}
		log.Info("status api stopped")
	}()

	bc.Start()
	sup.Start()
	matchPoller.Start()
	log.Info("console started")

	if viewPrefs.LastPlatform != "" {
		if err := ctrl.SwitchPlatform(ctx, viewPrefs.LastPlatform); err != nil {
			log.Err(err).Warn("initial platform restore error", logger.Data{"platform": viewPrefs.LastPlatform})
		}
	}

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("status api shutdown error")
	}
	log.Info("status api shutdown")

	matchPoller.Shutdown()
	sup.Shutdown()
	log.Info("pollers shutdown")

	logs.Close()
	bc.Close()
	log.Info("streams closed")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}

// logUI surfaces disambiguation items through the logger until a real
// front end attaches over the status API.
type logUI struct {
	log logger.Logger
}

func (u *logUI) ShowItem(game *models.Game, candidates []models.MatchCandidate, index, total int) {
	u.log.Info("disambiguation item", logger.Data{
		"path":       game.Path,
		"name":       game.Name,
		"candidates": len(candidates),
		"position":   index + 1,
		"total":      total,
	})
}

func (u *logUI) ResetState() {
	u.log.Info("disambiguation session closed")
}
