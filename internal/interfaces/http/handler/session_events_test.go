package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/dashboard/internal/interfaces/http/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sseFrame struct {
	Event string
	ID    string
	Data  string
}

type countingViews struct {
	open atomic.Int64
}

func (v *countingViews) ViewOpened() { v.open.Add(1) }
func (v *countingViews) ViewClosed() { v.open.Add(-1) }

// openStream connects a live view and returns its frames. token is sent as
// the credential cookie when set.
func openStream(t *testing.T, srv *httptest.Server, clientID, token, path string) (<-chan sseFrame, func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/session/events?path="+path, nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: middleware.ClientCookie, Value: clientID})
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: token})
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := make(chan sseFrame, 64)
	go func() {
		defer close(frames)
		r := bufio.NewReader(resp.Body)
		var f sseFrame
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "":
				if f.Event != "" {
					frames <- f
				}
				f = sseFrame{}
			case strings.HasPrefix(line, ":"):
			case strings.HasPrefix(line, "event: "):
				f.Event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "id: "):
				f.ID = strings.TrimPrefix(line, "id: ")
			case strings.HasPrefix(line, "data: "):
				f.Data = strings.TrimPrefix(line, "data: ")
			}
		}
	}()

	return frames, func() {
		cancel()
		_ = resp.Body.Close()
	}
}

func nextFrame(t *testing.T, frames <-chan sseFrame) sseFrame {
	t.Helper()
	select {
	case f, ok := <-frames:
		require.True(t, ok, "stream ended")
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an event")
		return sseFrame{}
	}
}

// untilEvent skips frames until one of the given type arrives
func untilEvent(t *testing.T, frames <-chan sseFrame, event string) sseFrame {
	t.Helper()
	for {
		if f := nextFrame(t, frames); f.Event == event {
			return f
		}
	}
}

// collectEvents reads until one frame of each type has arrived and returns
// their data by type
func collectEvents(t *testing.T, frames <-chan sseFrame, events ...string) map[string]string {
	t.Helper()
	want := make(map[string]bool, len(events))
	for _, e := range events {
		want[e] = true
	}
	seen := make(map[string]string, len(events))
	for len(seen) < len(events) {
		f := nextFrame(t, frames)
		if _, dup := seen[f.Event]; want[f.Event] && !dup {
			seen[f.Event] = f.Data
		}
	}
	return seen
}

func newStreamServer(t *testing.T, env *testEnv, views *countingViews) *httptest.Server {
	t.Helper()
	env.authRoutes(NewAuthHandler(env.auth, env.cookies, nil))
	env.engine.GET("/api/v1/session/events", NewSessionEventsHandler(time.Hour, views, nil).Stream)
	srv := httptest.NewServer(env.engine)
	t.Cleanup(srv.Close)
	return srv
}

func TestSessionEvents_AnonymousViewIsSentToLogin(t *testing.T) {
	env := newTestEnv(t)
	views := &countingViews{}
	srv := newStreamServer(t, env, views)

	cid := uuid.NewString()
	client, _ := env.registry.Acquire(context.Background(), cid, "")

	frames, closeStream := openStream(t, srv, cid, "", "/dashboard/inventory")

	f := nextFrame(t, frames)
	assert.Equal(t, "session", f.Event)
	assert.Equal(t, "1", f.ID)
	assert.JSONEq(t, `{"identity":null,"loading":false}`, f.Data)

	f = nextFrame(t, frames)
	assert.Equal(t, "active_route", f.Event)

	f = nextFrame(t, frames)
	assert.Equal(t, "device_tier", f.Event)
	assert.JSONEq(t, `{"tier":"desktop","compact":false}`, f.Data)

	f = nextFrame(t, frames)
	assert.Equal(t, "navigate", f.Event)
	assert.JSONEq(t, `{"path":"/login"}`, f.Data)

	assert.Equal(t, 1, client.Views())
	assert.Equal(t, int64(1), views.open.Load())

	closeStream()
	assert.Eventually(t, func() bool { return client.Views() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return views.open.Load() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return client.Viewport().SubscriberCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestSessionEvents_LogoutNavigatesToLogin(t *testing.T) {
	env := newTestEnv(t)
	srv := newStreamServer(t, env, nil)
	cid, token := env.signedIn(t)

	frames, closeStream := openStream(t, srv, cid, token, "/dashboard/invoices")
	defer closeStream()

	f := nextFrame(t, frames)
	require.Equal(t, "session", f.Event)
	assert.Contains(t, f.Data, `"username":"thukho"`)
	untilEvent(t, frames, "device_tier")

	w := env.serve(httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil), cid, token)
	require.Equal(t, http.StatusOK, w.Code)

	// Listeners of one session change run in no particular order
	seen := collectEvents(t, frames, "session", "navigate")
	assert.JSONEq(t, `{"identity":null,"loading":false}`, seen["session"])
	assert.JSONEq(t, `{"path":"/login"}`, seen["navigate"])
}

func TestSessionEvents_ViewportAndSelection(t *testing.T) {
	env := newTestEnv(t)
	srv := newStreamServer(t, env, nil)
	cid, token := env.signedIn(t)
	client := env.client(t, cid)

	frames, closeStream := openStream(t, srv, cid, token, "/dashboard/invoices")
	defer closeStream()
	untilEvent(t, frames, "device_tier")

	client.Viewport().Set(800)
	f := untilEvent(t, frames, "device_tier")
	assert.JSONEq(t, `{"tier":"tablet","compact":true}`, f.Data)

	_, err := client.Tracker().Select("/dashboard/suppliers")
	require.NoError(t, err)

	seen := collectEvents(t, frames, "navigate", "active_route")
	assert.JSONEq(t, `{"path":"/dashboard/suppliers"}`, seen["navigate"])

	var state struct {
		Entry struct {
			TargetPath string `json:"target_path"`
		} `json:"entry"`
		Pending bool `json:"pending"`
	}
	require.NoError(t, json.Unmarshal([]byte(seen["active_route"]), &state))
	assert.Equal(t, "/dashboard/suppliers", state.Entry.TargetPath)
	assert.True(t, state.Pending)
}

func TestSessionEvents_EvictionEndsStream(t *testing.T) {
	env := newTestEnv(t)
	srv := newStreamServer(t, env, nil)
	cid := uuid.NewString()
	env.registry.Acquire(context.Background(), cid, "")

	frames, closeStream := openStream(t, srv, cid, "", "/login")
	defer closeStream()
	untilEvent(t, frames, "device_tier")

	require.NoError(t, env.registry.Close(context.Background()))
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return
			}
		case <-time.After(5 * time.Second):
			t.Fatal("stream did not end")
		}
	}
}

func TestSessionEvents_RequiresPath(t *testing.T) {
	env := newTestEnv(t)
	env.engine.GET("/api/v1/session/events", NewSessionEventsHandler(time.Hour, nil, nil).Stream)

	w := env.serve(httptest.NewRequest(http.MethodGet, "/api/v1/session/events", nil), uuid.NewString(), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
