package joblog

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/romshelf/romshelf/pkg/config"
	"github.com/romshelf/romshelf/pkg/errcodes"
	"github.com/segmentio/encoding/json"
)

const dialTimeout = 10 * time.Second

// wsDialer opens websocket log feeds against the catalog server.
type wsDialer struct {
	cfg *config.Config
}

func NewDialer(cfg *config.Config) Dialer {
	return &wsDialer{cfg: cfg}
}

func (d *wsDialer) DialLogFeed(ctx context.Context, jobID string) (Feed, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	header := http.Header{}
	if d.cfg.ServerToken != "" {
		header.Set("Authorization", "Bearer "+d.cfg.ServerToken)
	}

	conn, _, err := dialer.DialContext(ctx, d.cfg.LogFeedURL(jobID), header)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &wsFeed{conn: conn}, nil
}

type wsFeed struct {
	conn *websocket.Conn
}

func (f *wsFeed) ReadFrame() (*Frame, error) {
	_, data, err := f.conn.ReadMessage()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	frame := &Frame{}
	if err := json.Unmarshal(data, frame); err != nil {
		return nil, errors.WithStack(errcodes.MalformedStream(err.Error()))
	}
	return frame, nil
}

func (f *wsFeed) Close() error {
	return errors.WithStack(f.conn.Close())
}
