package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// newTestConn dials a throwaway websocket peer that drains frames, so
// listener ops can send control frames without a full gateway server.
func newTestConn(t *testing.T) *wsConn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		for {
			if _, _, err := c.Read(r.Context()); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return newWSConn(ctx, conn)
}

func TestRemoteSessionStopClosesChannels(t *testing.T) {
	t.Parallel()

	l := newRemoteListener(newTestConn(t))
	sess, err := l.Listen(context.Background())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	rs := sess.(*remoteSession)

	l.deliver(Transcript{ID: rs.id, Text: "broom", Final: true, Confidence: 0.9})
	if err := sess.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Buffered transcripts drain, then the closed channel ends the range.
	var texts []string
	for res := range sess.Results() {
		texts = append(texts, res.Text)
	}
	if len(texts) != 1 || texts[0] != "broom" {
		t.Errorf("drained results = %v, want [broom]", texts)
	}
	if _, open := <-sess.Errors(); open {
		t.Error("Errors() still open after Stop")
	}
}

func TestRemoteSessionAbortUnblocksConsumer(t *testing.T) {
	t.Parallel()

	l := newRemoteListener(newTestConn(t))
	sess, err := l.Listen(context.Background())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	drained := make(chan struct{})
	go func() {
		for range sess.Results() {
		}
		close(drained)
	}()

	sess.Abort()
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer still ranging over Results() after Abort")
	}
}

func TestRemoteSessionDropsFramesAfterClose(t *testing.T) {
	t.Parallel()

	l := newRemoteListener(newTestConn(t))
	sess, err := l.Listen(context.Background())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	rs := sess.(*remoteSession)
	sess.Abort()

	// Frames racing the abort must be discarded, not sent on a closed channel.
	l.deliver(Transcript{ID: rs.id, Text: "late", Final: true})
	l.deliverError(ListenError{ID: rs.id, Kind: "network", Message: "socket gone"})

	if res, open := <-sess.Results(); open {
		t.Errorf("late transcript delivered after close: %+v", res)
	}
	if _, open := <-sess.Errors(); open {
		t.Error("late error delivered after close")
	}
}

func TestListenSupersedesPreviousSession(t *testing.T) {
	t.Parallel()

	l := newRemoteListener(newTestConn(t))
	first, err := l.Listen(context.Background())
	if err != nil {
		t.Fatalf("first Listen: %v", err)
	}
	second, err := l.Listen(context.Background())
	if err != nil {
		t.Fatalf("second Listen: %v", err)
	}

	if _, open := <-first.Results(); open {
		t.Error("superseded session's Results() still open")
	}

	rs2 := second.(*remoteSession)
	l.deliver(Transcript{ID: rs2.id, Text: "kettle", Final: true})
	select {
	case res := <-second.Results():
		if res.Text != "kettle" {
			t.Errorf("res.Text = %q, want kettle", res.Text)
		}
	default:
		t.Fatal("live session did not receive its transcript")
	}
}
