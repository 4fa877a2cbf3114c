// Package broadcast maintains the console's scoped membership on the
// catalog server's push channel. At most one platform is subscribed at a
// time; membership is reasserted on every (re)connect, and notifications
// for platforms other than the one in view are discarded, never applied
// speculatively.
package broadcast

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/romshelf/romshelf/pkg/config"
	"github.com/romshelf/romshelf/pkg/models"
	"github.com/segmentio/encoding/json"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

type Client struct {
	url        string
	token      string
	log        logger.Logger
	backoff    time.Duration
	backoffMax time.Duration

	onStateChanged func(models.StateChanged)
	onJobCompleted func(models.JobCompleted)
	onReconnect    func()

	mu       sync.Mutex
	wmu      sync.Mutex
	conn     *websocket.Conn
	platform string
	closed   bool
	started  bool

	shutdown chan struct{}
	done     chan struct{}
}

func New(cfg *config.Config, log logger.Logger) *Client {
	return &Client{
		url:        cfg.BroadcastURL(),
		token:      cfg.ServerToken,
		log:        log,
		backoff:    cfg.ReconnectBackoff,
		backoffMax: cfg.ReconnectBackoffMax,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// OnStateChanged registers the handler for scoped state-change
// notifications. Must be called before Start.
func (c *Client) OnStateChanged(fn func(models.StateChanged)) {
	c.onStateChanged = fn
}

// OnJobCompleted registers the handler for job-completed notifications.
// Must be called before Start.
func (c *Client) OnJobCompleted(fn func(models.JobCompleted)) {
	c.onJobCompleted = fn
}

// OnReconnect registers a hook invoked after membership has been
// reasserted on a new connection. Missed notifications are never replayed;
// consumers needing a guaranteed-fresh view trigger an explicit fetch here.
func (c *Client) OnReconnect(fn func()) {
	c.onReconnect = fn
}

// Start runs the connection loop until Close.
func (c *Client) Start() {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	go c.run()
}

func (c *Client) run() {
	defer close(c.done)

	delay := c.backoff
	connected := false

	for {
		select {
		case <-c.shutdown:
			return
		default:
		}

		conn, err := c.dial()
		if err != nil {
			c.log.Err(err).Warn("broadcast connect error", logger.Data{"retry_in": delay.String()})
			select {
			case <-c.shutdown:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.backoffMax {
				delay = c.backoffMax
			}
			continue
		}
		delay = c.backoff

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		platform := c.platform
		c.mu.Unlock()

		if err := c.send(models.MessageTypeHello, nil); err != nil {
			c.log.Err(err).Warn("broadcast hello error")
		}
		if platform != "" {
			if err := c.send(models.MessageTypeJoin, models.ScopeChange{Platform: platform}); err != nil {
				c.log.Err(err).Warn("broadcast rejoin error", logger.Data{"platform": platform})
			} else {
				c.log.Info("broadcast membership reasserted", logger.Data{"platform": platform})
			}
		}
		if connected && c.onReconnect != nil {
			c.onReconnect()
		}
		connected = true

		c.readLoop(conn)

		c.mu.Lock()
		closed := c.closed
		c.conn = nil
		c.mu.Unlock()
		conn.Close()

		if closed {
			return
		}
		c.log.Warn("broadcast channel lost, reconnecting")
	}
}

func (c *Client) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := dialer.Dial(c.url, header)
	return conn, errors.WithStack(err)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		env := models.Envelope{}
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Err(errors.WithStack(err)).Warn("broadcast frame parse error")
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env models.Envelope) {
	switch env.Type {
	case models.MessageTypeStateChanged:
		ev := models.StateChanged{}
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			c.log.Err(errors.WithStack(err)).Warn("state-changed payload parse error")
			return
		}
		if ev.Platform != c.Platform() {
			c.log.Info("discarding notification for platform not in view", logger.Data{
				"platform": ev.Platform,
				"action":   ev.Action,
			})
			return
		}
		if c.onStateChanged != nil {
			c.onStateChanged(ev)
		}
	case models.MessageTypeJobCompleted:
		ev := models.JobCompleted{}
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			c.log.Err(errors.WithStack(err)).Warn("job-completed payload parse error")
			return
		}
		if c.onJobCompleted != nil {
			c.onJobCompleted(ev)
		}
	case models.MessageTypeAck, models.MessageTypeHello:
		// Keepalive noise.
	default:
		c.log.Warn("unknown broadcast message type", logger.Data{"type": env.Type})
	}
}

// Join switches the subscription scope: the previous platform is left
// before the new one is joined. Safe to call redundantly and while
// disconnected; membership is reasserted on the next connect either way.
func (c *Client) Join(platform string) error {
	c.mu.Lock()
	prev := c.platform
	c.platform = platform
	connected := c.conn != nil
	c.mu.Unlock()

	if !connected || prev == platform {
		return nil
	}

	if prev != "" {
		if err := c.send(models.MessageTypeLeave, models.ScopeChange{Platform: prev}); err != nil {
			c.log.Err(err).Warn("broadcast leave error", logger.Data{"platform": prev})
		}
	}
	if platform != "" {
		if err := c.send(models.MessageTypeJoin, models.ScopeChange{Platform: platform}); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// Platform returns the platform currently subscribed.
func (c *Client) Platform() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.platform
}

// Close leaves the current scope and tears the channel down for good.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	platform := c.platform
	conn := c.conn
	started := c.started
	c.mu.Unlock()

	if conn != nil && platform != "" {
		// Best effort; the server drops membership on disconnect anyway.
		if err := c.send(models.MessageTypeLeave, models.ScopeChange{Platform: platform}); err != nil {
			c.log.Err(err).Warn("broadcast leave on close error")
		}
	}

	close(c.shutdown)
	if conn != nil {
		conn.Close()
	}
	if started {
		<-c.done
	}
}

func (c *Client) send(msgType string, payload interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("broadcast channel not connected")
	}

	env := models.Envelope{Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.WithStack(err)
		}
		env.Payload = data
	}
	data, err := json.Marshal(env)
	if err != nil {
		return errors.WithStack(err)
	}

	// gorilla/websocket allows one concurrent writer.
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return errors.WithStack(conn.WriteMessage(websocket.TextMessage, data))
}
