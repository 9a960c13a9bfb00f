package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/beingharisali/martchat/internal/bus"
	"github.com/beingharisali/martchat/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufSize    = 64

	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Client maintains the one live socket connection for a signed-in user.
// Inbound events are republished on the bus under the "transport."
// namespace; no chat logic lives here. After a reconnect the client
// re-emits setup and re-joins the recorded chat, so server-side
// registration survives connection drops.
type Client struct {
	url    string
	token  string
	user   model.User
	bus    *bus.Bus
	logger *zap.Logger
	send   chan Frame

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	joined    string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a socket client for the given user identity.
func New(socketURL, token string, user model.User, b *bus.Bus, logger *zap.Logger) *Client {
	return &Client{
		url:    socketURL,
		token:  token,
		user:   user,
		bus:    b,
		logger: logger,
		send:   make(chan Frame, sendBufSize),
	}
}

// Connect starts the connection loop. Every dial failure, the very first
// included, is retried with capped backoff until Disconnect, so a server
// that is unreachable at startup is picked up once it comes back.
func (c *Client) Connect(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.run(ctx)
}

// Disconnect tears the connection down and stops reconnecting. Tied to the
// identity lifecycle: called on logout or session shutdown.
func (c *Client) Disconnect() {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
	c.wg.Wait()
	c.logger.Info("socket disconnected")
}

// Connected reports whether the socket is currently live.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// JoinChat registers interest in a chat's live events. The registration is
// remembered and re-emitted after reconnects; re-joining the same chat is
// harmless.
func (c *Client) JoinChat(chatID string) {
	c.mu.Lock()
	c.joined = chatID
	live := c.connected
	c.mu.Unlock()
	if !live {
		return
	}
	c.enqueue(EventJoinChat, chatID)
}

// SendMessage relays a server-confirmed message to other participants'
// live connections. A silent no-op while disconnected: persistence already
// happened over REST, only the live broadcast is lost.
func (c *Client) SendMessage(msg *model.Message) {
	if !c.Connected() {
		c.logger.Debug("socket offline, broadcast skipped", zap.String("message_id", msg.ID))
		return
	}
	c.enqueue(EventNewMessage, msg)
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// run owns the connection across reconnects. Dial failures and dropped
// sessions take the same path: emit the disconnect, back off, dial again.
func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	backoff := initialBackoff
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("socket dial failed", zap.Error(err))
		} else {
			backoff = initialBackoff
			c.session(ctx, conn)
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("socket dropped, reconnecting")
		}
		c.bus.Emit(bus.TransportDisconnected, nil)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// session runs the pumps for one connection and blocks until it dies.
func (c *Client) session(ctx context.Context, conn *websocket.Conn) {
	sessCtx, sessCancel := context.WithCancel(ctx)
	defer sessCancel()

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	joined := c.joined
	c.mu.Unlock()

	var pumps sync.WaitGroup
	pumps.Add(1)
	go func() {
		defer pumps.Done()
		c.writePump(sessCtx, conn)
	}()

	// Register identity, then restore the chat registration.
	c.enqueue(EventSetup, c.user)
	if joined != "" {
		c.enqueue(EventJoinChat, joined)
	}

	c.readPump(conn)

	c.mu.Lock()
	c.connected = false
	c.conn = nil
	c.mu.Unlock()

	sessCancel()
	_ = conn.Close()
	pumps.Wait()
}

// enqueue queues a frame for the write pump, dropping on a full buffer.
func (c *Client) enqueue(event string, data any) {
	f, err := newFrame(event, data)
	if err != nil {
		c.logger.Error("encode socket frame", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case c.send <- f:
	default:
		c.logger.Warn("socket send buffer full, frame dropped", zap.String("event", event))
	}
}

func (c *Client) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("socket read error", zap.Error(err))
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.logger.Warn("malformed socket frame", zap.Error(err))
			continue
		}
		c.dispatch(f)
	}
}

func (c *Client) writePump(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case f := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch republishes an inbound event on the bus.
func (c *Client) dispatch(f Frame) {
	switch f.Event {
	case EventConnected:
		c.bus.Emit(bus.TransportConnected, nil)
	case EventOnlineUsers:
		var ids []string
		if err := json.Unmarshal(f.Data, &ids); err != nil {
			c.logger.Warn("malformed onlineUsers payload", zap.Error(err))
			return
		}
		c.bus.Emit(bus.TransportOnlineUsers, ids)
	case EventMessageReceived:
		var msg model.Message
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			c.logger.Warn("malformed message payload", zap.Error(err))
			return
		}
		c.bus.Emit(bus.TransportMessage, &msg)
	default:
		c.logger.Debug("unhandled socket event", zap.String("event", f.Event))
	}
}
