// Package joblog consumes the append-style progress feed of one running
// job. A consumer owns at most one feed: opening a new one always closes
// the prior one first. Updates are buffered and flushed to the sink on a
// debounce timer so a chatty job cannot saturate the render path, and the
// rendered content is capped at a fixed line count.
package joblog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

const (
	FrameInitial = "initial"
	FrameUpdate  = "update"
	FrameFinal   = "final"
)

// Frame is one message on a log feed.
type Frame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Feed is a one-way stream of frames for a single job.
type Feed interface {
	ReadFrame() (*Frame, error)
	Close() error
}

// Dialer opens a feed for a job.
type Dialer interface {
	DialLogFeed(ctx context.Context, jobID string) (Feed, error)
}

// Sink receives batched display mutations. Calls are serialized by the
// consumer; implementations must not call back into it.
type Sink interface {
	// Replace swaps the entire displayed content.
	Replace(lines []string)
	// Append adds lines to the end of the displayed content.
	Append(lines []string)
	// SetPending toggles the buffering indicator.
	SetPending(pending bool)
}

type Consumer struct {
	dialer   Dialer
	sink     Sink
	log      logger.Logger
	debounce time.Duration
	maxLines int

	mu         sync.Mutex
	feed       Feed
	jobID      string
	generation int
	lines      []string
	buffer     []string
	timer      *time.Timer
}

func NewConsumer(dialer Dialer, sink Sink, log logger.Logger, debounce time.Duration, maxLines int) *Consumer {
	return &Consumer{
		dialer:   dialer,
		sink:     sink,
		log:      log,
		debounce: debounce,
		maxLines: maxLines,
	}
}

// Open starts consuming the feed for jobID, closing any prior feed first.
func (c *Consumer) Open(ctx context.Context, jobID string) error {
	c.mu.Lock()
	c.closeLocked()
	c.generation++
	gen := c.generation
	c.jobID = jobID
	c.mu.Unlock()

	feed, err := c.dialer.DialLogFeed(ctx, jobID)
	if err != nil {
		return errors.WithStack(err)
	}

	c.mu.Lock()
	if gen != c.generation {
		// A newer Open or Close won the race.
		c.mu.Unlock()
		feed.Close()
		return nil
	}
	c.feed = feed
	c.mu.Unlock()

	go c.readLoop(gen, feed)
	return nil
}

// Close tears down the current feed, if any. Always immediate and local.
func (c *Consumer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	c.generation++
}

// Active reports whether a feed is currently open.
func (c *Consumer) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.feed != nil
}

// JobID returns the job whose feed was opened last.
func (c *Consumer) JobID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobID
}

func (c *Consumer) readLoop(gen int, feed Feed) {
	for {
		frame, err := feed.ReadFrame()
		if err != nil {
			c.handleError(gen, err)
			return
		}
		if done := c.handleFrame(gen, frame); done {
			return
		}
	}
}

func (c *Consumer) handleFrame(gen int, frame *Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return true
	}

	switch frame.Type {
	case FrameInitial:
		c.stopTimerLocked()
		c.buffer = nil
		c.lines = capLines(splitLines(frame.Text), c.maxLines)
		c.sink.Replace(c.lines)
		c.sink.SetPending(false)
	case FrameUpdate:
		c.buffer = append(c.buffer, splitLines(frame.Text)...)
		c.sink.SetPending(true)
		c.armTimerLocked(gen)
	case FrameFinal:
		c.stopTimerLocked()
		c.buffer = nil
		c.lines = capLines(splitLines(frame.Text), c.maxLines)
		c.sink.Replace(c.lines)
		c.sink.SetPending(false)
		c.closeLocked()
		return true
	default:
		c.log.Warn("unknown log frame type, closing feed", logger.Data{
			"type":   frame.Type,
			"job_id": c.jobID,
		})
		c.closeLocked()
		return true
	}
	return false
}

// flush moves buffered lines into the display in one batch.
func (c *Consumer) flush(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.timer = nil

	if len(c.buffer) > 0 {
		batch := c.buffer
		c.buffer = nil
		c.lines = append(c.lines, batch...)
		if len(c.lines) > c.maxLines {
			c.lines = capLines(c.lines, c.maxLines)
			c.sink.Replace(c.lines)
		} else {
			c.sink.Append(batch)
		}
	}
	c.sink.SetPending(false)
}

func (c *Consumer) handleError(gen int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}

	// No auto-reconnect: the operator reopens the view instead.
	c.log.Err(err).Warn("log feed error, closing", logger.Data{"job_id": c.jobID})
	c.stopTimerLocked()
	c.buffer = nil
	c.sink.SetPending(false)
	c.closeLocked()
}

// armTimerLocked schedules a flush unless one is already pending. The
// timer is never pushed back by later updates, so a feed emitting faster
// than the debounce interval still flushes once per window.
func (c *Consumer) armTimerLocked(gen int) {
	if c.timer != nil {
		return
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		c.flush(gen)
	})
}

func (c *Consumer) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Consumer) closeLocked() {
	c.stopTimerLocked()
	if c.feed != nil {
		c.feed.Close()
		c.feed = nil
	}
	c.buffer = nil
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// capLines keeps the newest max lines, discarding the oldest first.
func capLines(lines []string, max int) []string {
	if len(lines) <= max {
		return lines
	}
	return lines[len(lines)-max:]
}
