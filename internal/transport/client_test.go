package transport

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/beingharisali/martchat/internal/bus"
	"github.com/beingharisali/martchat/internal/model"
)

var upgrader = websocket.Upgrader{}

// testServer is a fake socket endpoint that records inbound frames and can
// push frames to the connected client.
type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	frames chan Frame
	conns  chan *websocket.Conn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		t:      t,
		frames: make(chan Frame, 32),
		conns:  make(chan *websocket.Conn, 4),
	}
	ts.srv = httptest.NewServer(ts.handler())
	t.Cleanup(ts.srv.Close)
	return ts
}

// newTestServerOn serves on a caller-owned listener, for tests that need
// the endpoint to appear at a known address after the client started.
func newTestServerOn(t *testing.T, l net.Listener) *testServer {
	t.Helper()
	ts := &testServer{
		t:      t,
		frames: make(chan Frame, 32),
		conns:  make(chan *websocket.Conn, 4),
	}
	ts.srv = httptest.NewUnstartedServer(ts.handler())
	_ = ts.srv.Listener.Close()
	ts.srv.Listener = l
	ts.srv.Start()
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.conns <- conn
		for {
			var f Frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			ts.frames <- f
		}
	})
}

func (ts *testServer) url() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func (ts *testServer) waitFrame(event string) Frame {
	ts.t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case f := <-ts.frames:
			if f.Event == event {
				return f
			}
		case <-deadline:
			ts.t.Fatalf("timeout waiting for %q frame", event)
			return Frame{}
		}
	}
}

func (ts *testServer) waitConn() *websocket.Conn {
	ts.t.Helper()
	select {
	case c := <-ts.conns:
		return c
	case <-time.After(3 * time.Second):
		ts.t.Fatal("timeout waiting for connection")
		return nil
	}
}

func newTestClient(t *testing.T, ts *testServer, b *bus.Bus) *Client {
	t.Helper()
	user := model.User{ID: "u1", FirstName: "Alice"}
	c := New(ts.url(), "tok", user, b, zap.NewNop())
	c.Connect(context.Background())
	t.Cleanup(c.Disconnect)
	return c
}

func TestConnectSendsSetup(t *testing.T) {
	ts := newTestServer(t)
	newTestClient(t, ts, bus.New())

	f := ts.waitFrame(EventSetup)
	var user model.User
	if err := json.Unmarshal(f.Data, &user); err != nil {
		t.Fatal(err)
	}
	if user.ID != "u1" {
		t.Errorf("setup user id = %q, want u1", user.ID)
	}
}

func TestJoinChat(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts, bus.New())

	ts.waitFrame(EventSetup)
	c.JoinChat("c1")

	f := ts.waitFrame(EventJoinChat)
	var chatID string
	if err := json.Unmarshal(f.Data, &chatID); err != nil {
		t.Fatal(err)
	}
	if chatID != "c1" {
		t.Errorf("joined chat = %q, want c1", chatID)
	}
}

func TestInboundMessageDispatch(t *testing.T) {
	b := bus.New()
	events, unsub := b.Subscribe(bus.TransportMessage, 10)
	defer unsub()

	ts := newTestServer(t)
	newTestClient(t, ts, b)
	conn := ts.waitConn()

	payload := `{"event":"message received","data":{"_id":"m1","content":"hi","chat":{"_id":"c1"}}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-events:
		msg, ok := evt.Payload.(*model.Message)
		if !ok {
			t.Fatalf("payload type %T, want *model.Message", evt.Payload)
		}
		if msg.ID != "m1" || msg.ChatID() != "c1" {
			t.Errorf("message = %+v, want m1 in c1", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for message event")
	}
}

func TestOnlineUsersDispatch(t *testing.T) {
	b := bus.New()
	events, unsub := b.Subscribe(bus.TransportOnlineUsers, 10)
	defer unsub()

	ts := newTestServer(t)
	newTestClient(t, ts, b)
	conn := ts.waitConn()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"onlineUsers","data":["u1","u2"]}`)); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-events:
		ids, ok := evt.Payload.([]string)
		if !ok || len(ids) != 2 {
			t.Errorf("payload = %v, want two ids", evt.Payload)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for onlineUsers event")
	}
}

func TestSendMessageWhileDisconnected(t *testing.T) {
	// Never connected: broadcast is a silent no-op.
	c := New("ws://127.0.0.1:1/socket", "tok", model.User{ID: "u1"}, bus.New(), zap.NewNop())
	c.SendMessage(&model.Message{ID: "m1"})
	if c.Connected() {
		t.Error("client should not report connected")
	}
}

func TestInitialDialFailureRetried(t *testing.T) {
	// Reserve an address, then shut it so the first dial is refused.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	b := bus.New()
	drops, unsub := b.Subscribe(bus.TransportDisconnected, 10)
	defer unsub()

	c := New("ws://"+addr+"/socket", "tok", model.User{ID: "u1"}, b, zap.NewNop())
	c.Connect(context.Background())
	t.Cleanup(c.Disconnect)

	select {
	case <-drops:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for dial-failure event")
	}

	// The endpoint comes up after the failure; the client must find it on
	// its own and register as usual.
	l, err = net.Listen("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	ts := newTestServerOn(t, l)

	f := ts.waitFrame(EventSetup)
	var user model.User
	if err := json.Unmarshal(f.Data, &user); err != nil {
		t.Fatal(err)
	}
	if user.ID != "u1" {
		t.Errorf("setup user id = %q, want u1", user.ID)
	}
}

func TestReconnectRestoresRegistration(t *testing.T) {
	b := bus.New()
	drops, unsub := b.Subscribe(bus.TransportDisconnected, 10)
	defer unsub()

	ts := newTestServer(t)
	c := newTestClient(t, ts, b)

	ts.waitFrame(EventSetup)
	c.JoinChat("c1")
	ts.waitFrame(EventJoinChat)

	// Kill the connection server-side; the client should redial and replay
	// setup plus the chat registration.
	conn := ts.waitConn()
	_ = conn.Close()

	select {
	case <-drops:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for disconnect event")
	}

	ts.waitFrame(EventSetup)
	f := ts.waitFrame(EventJoinChat)
	var chatID string
	_ = json.Unmarshal(f.Data, &chatID)
	if chatID != "c1" {
		t.Errorf("re-joined chat = %q, want c1", chatID)
	}
}
