package joblog

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFeed serves scripted frames and records its close.
type fakeFeed struct {
	mu     sync.Mutex
	frames chan *Frame
	errs   chan error
	closed bool
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		frames: make(chan *Frame, 16),
		errs:   make(chan error, 1),
	}
}

func (f *fakeFeed) ReadFrame() (*Frame, error) {
	select {
	case frame := <-f.frames:
		return frame, nil
	case err := <-f.errs:
		return nil, err
	}
}

func (f *fakeFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.errs <- io.EOF
	}
	return nil
}

func (f *fakeFeed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeDialer hands out prepared feeds in order.
type fakeDialer struct {
	mu    sync.Mutex
	feeds []*fakeFeed
	next  int
}

func (d *fakeDialer) DialLogFeed(_ context.Context, _ string) (Feed, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	feed := d.feeds[d.next]
	d.next++
	return feed, nil
}

func newTestConsumer(feeds ...*fakeFeed) (*Consumer, *MemorySink, *fakeDialer) {
	sink := NewMemorySink()
	dialer := &fakeDialer{feeds: feeds}
	c := NewConsumer(dialer, sink, logger.New(), 20*time.Millisecond, 10)
	return c, sink, dialer
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestInitialReplacesContent(t *testing.T) {
	feed := newFakeFeed()
	c, sink, _ := newTestConsumer(feed)

	require.NoError(t, c.Open(context.Background(), "j1"))
	feed.frames <- &Frame{Type: FrameInitial, Text: "line 1\nline 2\n"}

	waitFor(t, func() bool { return len(sink.Lines()) == 2 })
	assert.Equal(t, []string{"line 1", "line 2"}, sink.Lines())
	assert.False(t, sink.Pending())
}

func TestUpdatesAreDebouncedIntoOneBatch(t *testing.T) {
	feed := newFakeFeed()
	c, sink, _ := newTestConsumer(feed)

	require.NoError(t, c.Open(context.Background(), "j1"))
	feed.frames <- &Frame{Type: FrameInitial, Text: "start"}
	waitFor(t, func() bool { return len(sink.Lines()) == 1 })

	// Three updates inside the debounce window flush as one mutation.
	feed.frames <- &Frame{Type: FrameUpdate, Text: "a\n"}
	feed.frames <- &Frame{Type: FrameUpdate, Text: "b\n"}
	feed.frames <- &Frame{Type: FrameUpdate, Text: "c\n"}

	waitFor(t, func() bool { return sink.Pending() })
	waitFor(t, func() bool { return len(sink.Lines()) == 4 })

	assert.Equal(t, []string{"start", "a", "b", "c"}, sink.Lines())
	assert.False(t, sink.Pending())
	_, appends := sink.Mutations()
	assert.Equal(t, 1, appends)
}

func TestSustainedUpdatesStillFlushEachWindow(t *testing.T) {
	feed := newFakeFeed()
	c, sink, _ := newTestConsumer(feed)

	require.NoError(t, c.Open(context.Background(), "j1"))

	// Updates keep arriving faster than the 20ms debounce for the whole
	// test. The flush fires once per window regardless; it is never pushed
	// back by the next update.
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			case feed.frames <- &Frame{Type: FrameUpdate, Text: fmt.Sprintf("line %d\n", i)}:
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	waitFor(t, func() bool { return len(sink.Lines()) > 0 })

	close(stop)
	<-done
	c.Close()
}

func TestLineCapDiscardsOldestFirst(t *testing.T) {
	feed := newFakeFeed()
	c, sink, _ := newTestConsumer(feed)

	require.NoError(t, c.Open(context.Background(), "j1"))

	text := ""
	for i := 0; i < 15; i++ {
		text += "line\n"
	}
	feed.frames <- &Frame{Type: FrameInitial, Text: text}
	waitFor(t, func() bool { return len(sink.Lines()) > 0 })

	// maxLines is 10 in the test consumer.
	assert.Len(t, sink.Lines(), 10)
}

func TestFinalReplacesAndCloses(t *testing.T) {
	feed := newFakeFeed()
	c, sink, _ := newTestConsumer(feed)

	require.NoError(t, c.Open(context.Background(), "j1"))
	feed.frames <- &Frame{Type: FrameUpdate, Text: "partial\n"}
	feed.frames <- &Frame{Type: FrameFinal, Text: "full log\nsecond line"}

	waitFor(t, func() bool { return feed.isClosed() })
	waitFor(t, func() bool { return len(sink.Lines()) == 2 })

	assert.Equal(t, []string{"full log", "second line"}, sink.Lines())
	assert.False(t, sink.Pending())
	assert.False(t, c.Active())
}

func TestSecondOpenClosesFirstFeed(t *testing.T) {
	feed1 := newFakeFeed()
	feed2 := newFakeFeed()
	c, sink, _ := newTestConsumer(feed1, feed2)

	require.NoError(t, c.Open(context.Background(), "j1"))
	feed1.frames <- &Frame{Type: FrameInitial, Text: "job one"}
	waitFor(t, func() bool { return len(sink.Lines()) == 1 })

	require.NoError(t, c.Open(context.Background(), "j2"))
	waitFor(t, func() bool { return feed1.isClosed() })

	assert.False(t, feed2.isClosed())
	assert.Equal(t, "j2", c.JobID())

	// A frame racing in from the stale feed is ignored.
	feed2.frames <- &Frame{Type: FrameInitial, Text: "job two"}
	waitFor(t, func() bool {
		lines := sink.Lines()
		return len(lines) == 1 && lines[0] == "job two"
	})
}

func TestFeedErrorClosesWithoutRendering(t *testing.T) {
	feed := newFakeFeed()
	sink := NewMemorySink()
	// Debounce far longer than the test so the error always beats the flush.
	c := NewConsumer(&fakeDialer{feeds: []*fakeFeed{feed}}, sink, logger.New(), time.Second, 10)

	require.NoError(t, c.Open(context.Background(), "j1"))
	feed.frames <- &Frame{Type: FrameInitial, Text: "ok"}
	waitFor(t, func() bool { return len(sink.Lines()) == 1 })

	feed.frames <- &Frame{Type: FrameUpdate, Text: "buffered\n"}
	feed.errs <- io.ErrUnexpectedEOF

	waitFor(t, func() bool { return !c.Active() })

	// The buffered update is dropped, not rendered after the error.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"ok"}, sink.Lines())
	assert.False(t, sink.Pending())
}

func TestCloseIsImmediate(t *testing.T) {
	feed := newFakeFeed()
	c, _, _ := newTestConsumer(feed)

	require.NoError(t, c.Open(context.Background(), "j1"))
	c.Close()

	waitFor(t, func() bool { return feed.isClosed() })
	assert.False(t, c.Active())
}
