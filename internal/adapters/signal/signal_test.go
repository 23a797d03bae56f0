package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type client struct {
	t    *testing.T
	conn *websocket.Conn
	id   core.SessionID
}

func newServer(t *testing.T, opts Options) (*httptest.Server, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	o := orch.New(app.SimplePolicy{})
	ctl := NewSignalWSController(o, opts)
	r := gin.New()
	r.GET("/signal", func(c *gin.Context) {
		ctl.HandleSignal(context.Background(), c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, o
}

func dial(t *testing.T, srv *httptest.Server) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/signal"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &client{t: t, conn: conn}
	hello := c.read()
	require.Equal(t, "connected", hello["type"])
	c.id = core.SessionID(hello["id"].(string))
	require.NotEmpty(t, c.id)
	return c
}

func (c *client) send(v any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(v))
}

func (c *client) sendRaw(s string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(s)))
}

func (c *client) read() map[string]any {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]any
	require.NoError(c.t, c.conn.ReadJSON(&m))
	return m
}

// readType skips frames until one of type typ arrives.
func (c *client) readType(typ string) map[string]any {
	c.t.Helper()
	for i := 0; i < 10; i++ {
		if m := c.read(); m["type"] == typ {
			return m
		}
	}
	c.t.Fatalf("no %s frame", typ)
	return nil
}

// expectSilence asserts nothing arrives. The connection is unusable afterwards.
func (c *client) expectSilence() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := c.conn.ReadMessage()
	require.Error(c.t, err)
	var netErr interface{ Timeout() bool }
	require.ErrorAs(c.t, err, &netErr)
	assert.True(c.t, netErr.Timeout())
}

func TestSignalEndToEnd(t *testing.T) {
	srv, o := newServer(t, Options{})
	a, b := dial(t, srv), dial(t, srv)

	a.send(map[string]any{"type": "join", "room": "r1", "role": "speaker", "source": "en-US"})
	info := a.readType("room-info")
	assert.EqualValues(t, 1, info["room_size"])

	b.send(map[string]any{
		"type": "join", "room": "r1", "role": "translator",
		"pairs": []any{map[string]any{"source": map[string]any{"code": "en-US"}, "target": map[string]any{"code": "pt-BR"}}},
	})
	assert.EqualValues(t, 2, b.readType("room-info")["room_size"])
	joined := a.readType("peer-joined")
	assert.Equal(t, string(b.id), joined["member"].(map[string]any)["id"])
	a.readType("room-info")

	a.send(map[string]any{"type": "offer", "room": "r1", "to": string(b.id), "offer": map[string]any{"type": "offer", "sdp": "v=0"}})
	offer := b.readType("offer")
	assert.Equal(t, string(a.id), offer["from"])
	assert.Equal(t, "speaker", offer["meta"].(map[string]any)["role"])
	assert.Equal(t, "en-US", offer["meta"].(map[string]any)["source"])

	b.send(map[string]any{"type": "answer", "room": "r1", "to": string(a.id), "answer": map[string]any{"type": "answer", "sdp": "v=0"}})
	answer := a.readType("answer")
	assert.Equal(t, string(b.id), answer["from"])
	assert.Equal(t, "translator", answer["meta"].(map[string]any)["role"])

	b.send(map[string]any{"type": "whoami"})
	who := b.readType("whoami")
	assert.Equal(t, string(b.id), who["id"])
	assert.Equal(t, []any{"r1"}, who["rooms"])

	want := []core.SessionID{a.id, b.id}
	slices.Sort(want)
	assert.Equal(t, want, o.Channels.Recipients("r1", "en-US"))

	require.NoError(t, b.conn.Close())
	left := a.readType("peer-left")
	assert.Equal(t, string(b.id), left["member"].(map[string]any)["id"])
	assert.EqualValues(t, 1, a.readType("room-info")["room_size"])
	assert.Eventually(t, func() bool { return !o.Registry.Known(b.id) }, 2*time.Second, 10*time.Millisecond)
}

func TestSignalSurvivesBadInput(t *testing.T) {
	srv, _ := newServer(t, Options{})
	a := dial(t, srv)

	a.sendRaw(`not json`)
	a.sendRaw(`[1,2,3]`)
	a.send(map[string]any{"type": "bogus"})
	a.send(map[string]any{"type": "join"})
	a.send(map[string]any{"type": "leave"})
	a.send(map[string]any{"type": "offer", "room": "r1", "to": "nobody"})

	a.send(map[string]any{"type": "ping"})
	assert.Equal(t, "pong", a.read()["type"], "nothing before the pong")
}

func TestSignalJoinSkipsMistypedMetadata(t *testing.T) {
	srv, o := newServer(t, Options{})
	a := dial(t, srv)

	a.send(map[string]any{"type": "join", "room": "r1", "role": 42, "source": "en-US"})
	info := a.readType("room-info")
	members := info["members"].([]any)
	require.Len(t, members, 1)
	self := members[0].(map[string]any)
	assert.NotContains(t, self, "role")
	assert.Equal(t, "en-US", self["source"])
	assert.Equal(t, []core.SessionID{a.id}, o.Channels.Recipients("r1", "en-US"))

	a.send(map[string]any{"type": "update-meta", "role": "speaker", "want": false})
	self = a.readType("room-info")["members"].([]any)[0].(map[string]any)
	assert.Equal(t, "speaker", self["role"])
	assert.NotContains(t, self, "want")
}

func TestSignalRelayWithUnusableTargetIsDropped(t *testing.T) {
	srv, _ := newServer(t, Options{})
	a, b, c := dial(t, srv), dial(t, srv), dial(t, srv)

	a.send(map[string]any{"type": "join", "room": "r1", "source": "en-US"})
	a.readType("room-info")
	b.send(map[string]any{"type": "join", "room": "r1", "source": "en-US"})
	b.readType("room-info")
	c.send(map[string]any{"type": "join", "room": "r1"})
	c.readType("room-info")
	b.readType("peer-joined")
	b.readType("room-info")

	offer := map[string]any{"type": "offer", "sdp": "v=0"}
	for _, to := range []any{12345, true, map[string]any{"id": string(b.id)}, []any{string(b.id)}, ""} {
		a.send(map[string]any{"type": "offer", "room": "r1", "to": to, "offer": offer})
	}
	a.send(map[string]any{"type": "offer", "room": "r1", "src": 7, "offer": offer})

	// Events of one connection are handled in order, so the pong proves the
	// offers were already dispatched.
	a.send(map[string]any{"type": "ping"})
	a.readType("pong")
	b.expectSilence()
	c.expectSilence()
}

func TestRelayTarget(t *testing.T) {
	cases := []struct {
		body string
		to   string
		ok   bool
	}{
		{`{}`, "", true},
		{`{"to":null}`, "", true},
		{`{"to":"peer"}`, "peer", true},
		{`{"to":""}`, "", false},
		{`{"to":12345}`, "", false},
		{`{"to":{"id":"peer"}}`, "", false},
		{`{"to":false}`, "", false},
	}
	for _, tc := range cases {
		var fields map[string]json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(tc.body), &fields))
		to, ok := relayTarget(fields)
		assert.Equal(t, tc.to, to, tc.body)
		assert.Equal(t, tc.ok, ok, tc.body)
	}
}

func TestOptionalString(t *testing.T) {
	fields := map[string]json.RawMessage{
		"s": json.RawMessage(`"en-US"`),
		"n": json.RawMessage(` null `),
		"x": json.RawMessage(`7`),
	}
	s, ok := optionalString(fields, "s")
	assert.True(t, ok)
	assert.Equal(t, "en-US", s)
	_, ok = optionalString(fields, "n")
	assert.True(t, ok)
	_, ok = optionalString(fields, "missing")
	assert.True(t, ok)
	_, ok = optionalString(fields, "x")
	assert.False(t, ok)
}

func TestSignalListMembersAndLeave(t *testing.T) {
	srv, o := newServer(t, Options{})
	a, b := dial(t, srv), dial(t, srv)

	a.send(map[string]any{"type": "join", "room": "r1"})
	a.readType("room-info")
	b.send(map[string]any{"type": "join", "room": "r1", "want": "pt-BR"})
	b.readType("room-info")
	a.readType("peer-joined")
	a.readType("room-info")

	b.send(map[string]any{"type": "list-members", "room": "r1"})
	list := b.readType("room-info")
	require.Len(t, list["members"], 2)

	b.send(map[string]any{"type": "leave", "room": "r1"})
	assert.Equal(t, "peer-left", a.read()["type"], "list-members is never broadcast")
	assert.Equal(t, "room-info", a.read()["type"])
	assert.Equal(t, []core.SessionID{a.id}, o.Rooms.Members("r1"))
}

func TestSignalRateLimit(t *testing.T) {
	srv, _ := newServer(t, Options{RateLimit: 2, RateInterval: time.Minute})
	a := dial(t, srv)

	a.send(map[string]any{"type": "ping"})
	a.send(map[string]any{"type": "ping"})
	a.send(map[string]any{"type": "ping"})
	assert.Equal(t, "pong", a.read()["type"])
	assert.Equal(t, "pong", a.read()["type"])
	a.expectSilence()
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/signal", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}
	open := originChecker([]string{"*"})
	assert.True(t, open(req("https://evil.example")))

	strict := originChecker([]string{"https://app.example"})
	assert.True(t, strict(req("https://app.example")))
	assert.True(t, strict(req("")))
	assert.False(t, strict(req("https://evil.example")))
}

func TestWsSignalConnClosedAndFull(t *testing.T) {
	srv, _ := newServer(t, Options{})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/signal"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	c := &WsSignalConn{conn: ws, send: make(chan core.Frame, 1)}
	require.NoError(t, c.TrySend(core.Frame("1")))
	assert.ErrorIs(t, c.TrySend(core.Frame("2")), core.ErrBackpressure)
	c.Close()
	c.Close()
	assert.ErrorIs(t, c.TrySend(core.Frame("3")), core.ErrConnectionClosed)
}

func TestHandlerPanicIsContained(t *testing.T) {
	ctl := &SignalWSController{limiter: NewRateLimiter(0, 0)}
	before := testutil.ToFloat64(metrics.HandlerPanics)

	assert.NotPanics(t, func() {
		ctl.handleSignal("x", nil, []byte(`{"type":"join","room":"r1"}`))
	})
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.HandlerPanics))
}
