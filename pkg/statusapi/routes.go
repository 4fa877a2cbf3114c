// Package statusapi exposes a local HTTP surface over the console's state:
// the supervised job set, the queue, and the table in view. It binds to
// loopback and exists for scripting and debugging against a running
// console.
package statusapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/romshelf/romshelf/pkg/binder"
	"github.com/romshelf/romshelf/pkg/config"
	"github.com/romshelf/romshelf/pkg/errcodes"
	"github.com/romshelf/romshelf/pkg/gameapi"
	"github.com/romshelf/romshelf/pkg/models"
)

// JobControl is the slice of the task supervisor the API serves.
type JobControl interface {
	Snapshot() []*models.Job
	StartJob(ctx context.Context, req gameapi.StartJobRequest) (*gameapi.StartJobResult, error)
	StopJob(ctx context.Context, jobID string) (string, error)
	AcknowledgeRefresh(ctx context.Context, jobID string) error
	QueueView(ctx context.Context) (*models.JobQueueView, error)
	StaticLog(ctx context.Context, jobID string) (string, error)
}

// ViewState reports what the console currently renders.
type ViewState interface {
	Platform() string
	RowCount() int
}

func New(cfg *config.Config, jobs JobControl, view ViewState) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)
	registerRoutes(e, jobs, view)

	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.StatusHost, cfg.StatusPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func registerRoutes(e *echo.Echo, jobs JobControl, view ViewState) {
	h := &handler{
		jobs: jobs,
		view: view,
	}

	e.GET("/jobs", h.listJobs)
	e.GET("/jobs/queue", h.queueView)
	e.POST("/jobs", h.startJob)
	e.POST("/jobs/:id/stop", h.stopJob)
	e.POST("/jobs/:id/ack", h.acknowledge)
	e.GET("/jobs/:id/log", h.jobLog)
	e.GET("/view", h.viewState)
}
