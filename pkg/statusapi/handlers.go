package statusapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/romshelf/romshelf/pkg/errcodes"
	"github.com/romshelf/romshelf/pkg/gameapi"
	"github.com/romshelf/romshelf/pkg/models"
)

type handler struct {
	jobs JobControl
	view ViewState
}

func (h *handler) listJobs(c echo.Context) error {
	jobs := h.jobs.Snapshot()

	resp := struct {
		Jobs []*models.Job `json:"jobs"`
	}{jobs}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) queueView(c echo.Context) error {
	ctx := c.Request().Context()

	view, err := h.jobs.QueueView(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, view))
}

func (h *handler) startJob(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := StartJobPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	result, err := h.jobs.StartJob(ctx, gameapi.StartJobRequest{
		Type:     params.Type,
		Platform: params.Platform,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	switch result.Outcome {
	case gameapi.StartOutcomeConflict:
		return errcodes.Conflict(result.Message)
	case gameapi.StartOutcomeQueued:
		return errors.WithStack(c.JSON(http.StatusAccepted, result))
	}
	return errors.WithStack(c.JSON(http.StatusOK, result))
}

func (h *handler) stopJob(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	msg, err := h.jobs.StopJob(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Message string `json:"message"`
	}{msg}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) acknowledge(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	if err := h.jobs.AcknowledgeRefresh(ctx, id); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) jobLog(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	text, err := h.jobs.StaticLog(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Text string `json:"text"`
	}{text}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) viewState(c echo.Context) error {
	resp := struct {
		Platform string `json:"platform"`
		Rows     int    `json:"rows"`
	}{h.view.Platform(), h.view.RowCount()}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}
