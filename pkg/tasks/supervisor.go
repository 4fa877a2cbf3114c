// Package tasks supervises the server-side job set from the console's
// point of view: it polls the authoritative list, backfills volatile
// fields from durable history, and decides when a job's completion should
// refresh the table in view.
package tasks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/romshelf/romshelf/pkg/errcodes"
	"github.com/romshelf/romshelf/pkg/gameapi"
	"github.com/romshelf/romshelf/pkg/models"
)

// API is the slice of the catalog client the supervisor needs.
type API interface {
	ListJobs(ctx context.Context) (map[string]*models.Job, error)
	JobHistory(ctx context.Context) (map[string]*models.Job, error)
	AcknowledgeRefresh(ctx context.Context, jobID string) error
	StartJob(ctx context.Context, req gameapi.StartJobRequest) (*gameapi.StartJobResult, error)
	StopJob(ctx context.Context, jobID string) (string, error)
	QueueView(ctx context.Context) (*models.JobQueueView, error)
	StaticLog(ctx context.Context, jobID string) (string, error)
}

type Supervisor struct {
	api      API
	log      logger.Logger
	interval time.Duration

	// platformInView reports the platform whose table is currently
	// rendered; completion relevance is gated on it.
	platformInView func() string
	// onCompletion is invoked for each relevant completion, before the
	// acknowledgment round-trip.
	onCompletion func(job *models.Job)

	mu            sync.Mutex
	jobs          map[string]*models.Job
	history       map[string]*models.Job
	historyLoaded bool
	processed     map[string]bool

	shutdown chan struct{}
	done     chan struct{}
}

func New(api API, log logger.Logger, interval time.Duration, platformInView func() string, onCompletion func(*models.Job)) *Supervisor {
	return &Supervisor{
		api:            api,
		log:            log,
		interval:       interval,
		platformInView: platformInView,
		onCompletion:   onCompletion,
		jobs:           map[string]*models.Job{},
		processed:      map[string]bool{},
		shutdown:       make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start begins the fixed-interval poll loop.
func (s *Supervisor) Start() {
	go s.run()
}

func (s *Supervisor) Shutdown() {
	close(s.shutdown)
	<-s.done
}

func (s *Supervisor) run() {
	defer close(s.done)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-timer.C:
			s.Poll(context.Background())
			timer.Reset(s.interval)
		}
	}
}

// Poll fetches the job set once and evaluates completions. A failed fetch
// is logged and left for the next tick; it never propagates.
func (s *Supervisor) Poll(ctx context.Context) {
	live, err := s.api.ListJobs(ctx)
	if err != nil {
		s.log.Err(err).Warn("job poll error, retrying next tick")
		return
	}

	s.ensureHistory(ctx)

	s.mu.Lock()
	prev := s.jobs
	next := make(map[string]*models.Job, len(live))
	for id, job := range live {
		next[id] = s.backfillLocked(job)
	}
	s.jobs = next

	var completions []*models.Job
	for id, job := range next {
		if !job.Terminal() || s.processed[id] {
			continue
		}
		// Leaving running is the only completion point; a job first
		// observed already terminal counts, since the transition
		// happened between polls.
		if p, ok := prev[id]; ok && p.Terminal() {
			s.processed[id] = true
			continue
		}
		s.processed[id] = true
		completions = append(completions, job)
	}
	s.mu.Unlock()

	for _, job := range completions {
		s.evaluateCompletion(ctx, job)
	}
}

// ensureHistory fetches durable job history once per session. Failure is
// logged and retried on the next poll.
func (s *Supervisor) ensureHistory(ctx context.Context) {
	s.mu.Lock()
	loaded := s.historyLoaded
	s.mu.Unlock()
	if loaded {
		return
	}

	history, err := s.api.JobHistory(ctx)
	if err != nil {
		s.log.Err(err).Warn("job history fetch error, retrying next tick")
		return
	}

	s.mu.Lock()
	s.history = history
	s.historyLoaded = true
	s.mu.Unlock()
}

// backfillLocked fills fields the live snapshot lost (a restart wipes
// volatile counters) from history. Live values win whenever present.
func (s *Supervisor) backfillLocked(job *models.Job) *models.Job {
	h, ok := s.history[job.ID]
	if !ok {
		return job
	}

	if job.Platform == "" {
		job.Platform = h.Platform
	}
	if job.Username == "" {
		job.Username = h.Username
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = h.StartedAt
	}
	if job.TotalSteps == 0 {
		job.TotalSteps = h.TotalSteps
	}
	if job.CurrentStep == 0 {
		job.CurrentStep = h.CurrentStep
	}
	return job
}

func (s *Supervisor) evaluateCompletion(ctx context.Context, job *models.Job) {
	data := logger.Data{"job_id": job.ID, "type": job.Type, "platform": job.Platform}

	if !job.RefreshNeeded {
		return
	}

	if inView := s.platformInView(); job.Platform != inView {
		s.log.Info("job completed for platform not in view, deferring refresh", data)
		return
	}

	if s.onCompletion != nil {
		s.onCompletion(job)
	}

	// At-least-once acknowledgment: the refresh already happened locally,
	// so a failed ack only risks a duplicate flag next session.
	if err := s.api.AcknowledgeRefresh(ctx, job.ID); err != nil {
		s.log.Err(err).Warn("refresh acknowledgment error", data)
	}
}

// Snapshot returns the merged job set sorted running first, then by
// descending start time.
func (s *Supervisor) Snapshot() []*models.Job {
	s.mu.Lock()
	jobs := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		ri := jobs[i].Status == models.JobStatusRunning
		rj := jobs[j].Status == models.JobStatusRunning
		if ri != rj {
			return ri
		}
		if !jobs[i].StartedAt.Equal(jobs[j].StartedAt) {
			return jobs[i].StartedAt.After(jobs[j].StartedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}

// Job returns the merged view of one job.
func (s *Supervisor) Job(id string) (*models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Start submits a new job. Conflict and queued outcomes come back as
// results for distinct operator surfacing, not as errors.
func (s *Supervisor) StartJob(ctx context.Context, req gameapi.StartJobRequest) (*gameapi.StartJobResult, error) {
	result, err := s.api.StartJob(ctx, req)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	data := logger.Data{"type": req.Type, "platform": req.Platform, "outcome": result.Outcome}
	switch result.Outcome {
	case gameapi.StartOutcomeConflict:
		s.log.Warn("job rejected by conflicting active job", data)
	case gameapi.StartOutcomeQueued:
		data["queue_position"] = result.QueuePosition
		s.log.Info("job queued", data)
	default:
		s.log.Info("job started", data)
	}
	return result, nil
}

// StopJob requests cancellation. The job remains active locally until the
// next poll observes its transition; the message reports acceptance only.
func (s *Supervisor) StopJob(ctx context.Context, jobID string) (string, error) {
	msg, err := s.api.StopJob(ctx, jobID)
	if err != nil {
		return "", errors.WithStack(err)
	}
	s.log.Info("job stop requested", logger.Data{"job_id": jobID, "message": msg})
	return msg, nil
}

// AcknowledgeRefresh forwards an explicit acknowledgment. Idempotent.
func (s *Supervisor) AcknowledgeRefresh(ctx context.Context, jobID string) error {
	return errors.WithStack(s.api.AcknowledgeRefresh(ctx, jobID))
}

// QueueView fetches the server's queue snapshot.
func (s *Supervisor) QueueView(ctx context.Context) (*models.JobQueueView, error) {
	view, err := s.api.QueueView(ctx)
	return view, errors.WithStack(err)
}

// StaticLog fetches the full log text of a job that is not running. Live
// jobs stream through the log feed instead.
func (s *Supervisor) StaticLog(ctx context.Context, jobID string) (string, error) {
	if job, ok := s.Job(jobID); ok && job.Status == models.JobStatusRunning {
		return "", errors.WithStack(errcodes.Conflict("Job is running; use the live log feed."))
	}
	text, err := s.api.StaticLog(ctx, jobID)
	return text, errors.WithStack(err)
}
