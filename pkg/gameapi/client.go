// Package gameapi is the HTTP client for the catalog server. It models the
// request/response contracts the console consumes; endpoint bodies beyond
// that shape are the server's concern.
package gameapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/romshelf/romshelf/pkg/config"
	"github.com/romshelf/romshelf/pkg/errcodes"
	"github.com/romshelf/romshelf/pkg/models"
	"github.com/segmentio/encoding/json"
)

// Outcomes of a start-job request. Conflict and queued are both non-fatal
// and surfaced distinctly to the operator.
const (
	StartOutcomeStarted  = "started"
	StartOutcomeQueued   = "queued"
	StartOutcomeConflict = "conflict"
)

type StartJobRequest struct {
	Type     string `json:"type"`
	Platform string `json:"platform"`
}

type StartJobResult struct {
	Outcome       string      `json:"outcome"`
	Job           *models.Job `json:"job,omitempty"`
	QueuePosition int         `json:"queue_position,omitempty"`
	Message       string      `json:"message,omitempty"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        logger.Logger
}

func New(cfg *config.Config, log logger.Logger) *Client {
	return &Client{
		baseURL: cfg.ServerURL,
		token:   cfg.ServerToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// ListJobs returns the server's current job set keyed by job id.
func (c *Client) ListJobs(ctx context.Context) (map[string]*models.Job, error) {
	resp := struct {
		Jobs map[string]*models.Job `json:"jobs"`
	}{}
	if err := c.do(ctx, http.MethodGet, "/jobs", nil, &resp); err != nil {
		return nil, errors.WithStack(err)
	}
	return resp.Jobs, nil
}

// JobHistory returns durable job metadata keyed by job id. Fetched once per
// session to backfill fields a server restart wiped from the live set.
func (c *Client) JobHistory(ctx context.Context) (map[string]*models.Job, error) {
	resp := struct {
		Jobs map[string]*models.Job `json:"jobs"`
	}{}
	if err := c.do(ctx, http.MethodGet, "/jobs/history", nil, &resp); err != nil {
		return nil, errors.WithStack(err)
	}
	return resp.Jobs, nil
}

// AcknowledgeRefresh tells the server this client acted on the job's
// completion so the refresh flag is not served again. Idempotent on the
// server side; safe to call more than once.
func (c *Client) AcknowledgeRefresh(ctx context.Context, jobID string) error {
	return errors.WithStack(c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/ack", nil, nil))
}

// StartJob submits a new job. A conflicting active job yields either a
// conflict rejection or a queued outcome with a 1-based position; both are
// returned as results, not errors.
func (c *Client) StartJob(ctx context.Context, req StartJobRequest) (*StartJobResult, error) {
	result := &StartJobResult{}
	err := c.do(ctx, http.MethodPost, "/jobs", req, result)
	if err != nil {
		if errcodes.IsConflict(err) {
			return &StartJobResult{Outcome: StartOutcomeConflict, Message: err.Error()}, nil
		}
		return nil, errors.WithStack(err)
	}
	if result.Outcome == "" {
		if result.QueuePosition > 0 {
			result.Outcome = StartOutcomeQueued
		} else {
			result.Outcome = StartOutcomeStarted
		}
	}
	return result, nil
}

// StopJob requests cancellation. Best effort: the returned message reports
// request acceptance, not completion, and the job stays active until the
// next observed status transition.
func (c *Client) StopJob(ctx context.Context, jobID string) (string, error) {
	resp := struct {
		Message string `json:"message"`
	}{}
	if err := c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/stop", nil, &resp); err != nil {
		return "", errors.WithStack(err)
	}
	return resp.Message, nil
}

// QueueView returns the server's queued and current jobs.
func (c *Client) QueueView(ctx context.Context) (*models.JobQueueView, error) {
	view := &models.JobQueueView{}
	if err := c.do(ctx, http.MethodGet, "/jobs/queue", nil, view); err != nil {
		return nil, errors.WithStack(err)
	}
	return view, nil
}

// StaticLog fetches the full log text of a non-running job.
func (c *Client) StaticLog(ctx context.Context, jobID string) (string, error) {
	resp := struct {
		Text string `json:"text"`
	}{}
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID)+"/log/static", nil, &resp); err != nil {
		return "", errors.WithStack(err)
	}
	return resp.Text, nil
}

// ListGames fetches the authoritative record snapshot for a platform.
func (c *Client) ListGames(ctx context.Context, platform string) ([]*models.Game, error) {
	resp := struct {
		Games []*models.Game `json:"games"`
	}{}
	if err := c.do(ctx, http.MethodGet, "/platforms/"+url.PathEscape(platform)+"/games", nil, &resp); err != nil {
		return nil, errors.WithStack(err)
	}
	return resp.Games, nil
}

// SaveGames persists changed games. The manifest maps game path to the
// fields changed locally; the server uses it for auditing only.
func (c *Client) SaveGames(ctx context.Context, games []*models.Game, manifest map[string][]string) error {
	payload := struct {
		Games    []*models.Game      `json:"games"`
		Manifest map[string][]string `json:"manifest"`
	}{games, manifest}
	return errors.WithStack(c.do(ctx, http.MethodPut, "/games", payload, nil))
}

// MatchCandidates returns the ranked candidate list for a game name. When
// the server already attached candidates to a request, they are passed
// through as preload and returned as-is without a second fetch.
func (c *Client) MatchCandidates(ctx context.Context, name string, preload []models.MatchCandidate) ([]models.MatchCandidate, error) {
	if len(preload) > 0 {
		return preload, nil
	}
	payload := struct {
		Name string `json:"name"`
	}{name}
	resp := struct {
		Candidates []models.MatchCandidate `json:"candidates"`
	}{}
	if err := c.do(ctx, http.MethodPost, "/match/candidates", payload, &resp); err != nil {
		return nil, errors.WithStack(err)
	}
	return resp.Candidates, nil
}

// PendingMatchRequest polls for a disambiguation request surfaced by
// another session. Returns nil when none is pending.
func (c *Client) PendingMatchRequest(ctx context.Context) (*models.MatchRequest, error) {
	req := &models.MatchRequest{}
	err := c.do(ctx, http.MethodGet, "/match/pending", nil, req)
	if err != nil {
		var e *errcodes.Error
		if errors.As(err, &e) && e.Code == "not_found" {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}
	if req.ID == "" {
		return nil, nil
	}
	return req, nil
}

// CloseMatchRequest resolves a cross-session request so it is not
// re-surfaced to any session.
func (c *Client) CloseMatchRequest(ctx context.Context, id string) error {
	return errors.WithStack(c.do(ctx, http.MethodDelete, "/match/pending/"+url.PathEscape(id), nil, nil))
}

// errorPayload is the server's error body shape.
type errorPayload struct {
	Error struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		StatusCode int    `json:"status_code"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.WithStack(err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.WithStack(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errcodes.Transient(fmt.Sprintf("catalog server unreachable: %s", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errcodes.Transient(fmt.Sprintf("catalog server read error: %s", err))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return c.toError(resp.StatusCode, data)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrapf(err, "unmarshal %s %s response", method, path)
		}
	}

	return nil
}

// toError maps a non-2xx response onto the errcodes taxonomy so callers
// can branch on conflict vs transient without parsing bodies themselves.
func (c *Client) toError(status int, data []byte) error {
	payload := errorPayload{}
	msg := http.StatusText(status)
	code := ""
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error.Message != "" {
		msg = payload.Error.Message
		code = payload.Error.Code
	}

	switch {
	case status == http.StatusConflict || code == "conflict":
		return errcodes.Conflict(msg)
	case status == http.StatusNotFound:
		return &errcodes.Error{HTTPCode: status, Message: msg, Code: "not_found"}
	case status >= http.StatusInternalServerError:
		return errcodes.Transient(msg)
	}
	return &errcodes.Error{HTTPCode: status, Message: msg, Code: code}
}
