package hub

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yeshengliu/social-media/internal/event"
	"github.com/yeshengliu/social-media/internal/presence"
)

var (
	// tuning parameters
	writeWait          = 10 * time.Second       // time allowed to write a message to the peer
	pongWait           = 20 * time.Second       // time allowed to read the next pong message from the peer
	pingInterval       = (pongWait * 9) / 10    // send pings to peer with this period
	maxMessageSize     = 64 * 1024              // max inbound message size (64KB)
	sendBufSize        = 256                    // per-connection outbound buffer size
	workerPoolSize     = 16                     // number of workers to process inbound events
	sendTimeout        = 2 * time.Second        // timeout for enqueuing outbound events
	registerTimeout    = 5 * time.Second        // timeout for client registration
	unregisterTimeout  = 5 * time.Second        // timeout for client unregistration
	inboundSendTimeout = 500 * time.Millisecond // timeout for sending to inbound channel
)

// session is the view of a connection the dispatch handler works against.
// Client implements it; tests substitute a fake.
type session interface {
	presence.Session
	UserID() string
	BindUser(userID string) bool
	Context() context.Context
}

// Client wraps one WebSocket connection. It starts Unidentified; the join
// event binds it to a user, and it stays bound until closed.
type Client struct {
	id      string
	conn    *websocket.Conn
	manager *Hub
	egress  chan event.WsEvent
	logger  *zap.Logger

	// identity, set once by the join event
	userID string
	idMu   sync.RWMutex

	cancel         context.CancelFunc
	ctx            context.Context
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
}

// RegisterClient creates a client for a fresh connection and hands it to the
// hub. The connection carries no identity yet.
func RegisterClient(conn *websocket.Conn, h *Hub) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	client := &Client{
		id:         uuid.New().String(),
		conn:       conn,
		manager:    h,
		egress:     make(chan event.WsEvent, sendBufSize),
		logger:     h.logger,
		cancel:     cancel,
		ctx:        ctx,
		connClosed: make(chan struct{}),
	}

	select {
	case h.register <- client:
		go client.readMessages()
		go client.writeMessages()
		h.logger.Debug("client registered", zap.String("client_id", client.id))
		return client
	case <-time.After(registerTimeout):
		h.logger.Warn("failed to register client: timeout", zap.String("client_id", client.id))
		cancel()
		conn.Close()
		return nil
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Context() context.Context { return c.ctx }

// UserID returns the bound user, or "" while the connection is Unidentified.
func (c *Client) UserID() string {
	c.idMu.RLock()
	defer c.idMu.RUnlock()
	return c.userID
}

// BindUser records the identity from the join event. Returns true only on the
// first bind; a duplicate join is a no-op and a join under a different user on
// the same connection keeps the original binding.
func (c *Client) BindUser(userID string) bool {
	c.idMu.Lock()
	defer c.idMu.Unlock()

	if c.userID != "" {
		if c.userID != userID {
			c.logger.Warn("join ignored: connection already bound",
				zap.String("client_id", c.id),
				zap.String("bound_user", c.userID),
				zap.String("join_user", userID),
			)
		}
		return false
	}

	c.userID = userID
	return true
}

func (c *Client) readMessages() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-time.After(unregisterTimeout):
			c.logger.Warn("failed to unregister client: timeout", zap.String("client_id", c.id))
		}
		c.Close()
	}()

	c.conn.SetReadLimit(int64(maxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			var ev event.WsEvent

			if err := c.conn.ReadJSON(&ev); err != nil {
				if websocket.IsCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					c.logger.Debug("client disconnected", zap.String("client_id", c.id))
					return
				}

				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					c.logger.Debug("client timed out", zap.String("client_id", c.id))
					return
				}

				c.logger.Warn("read error", zap.String("client_id", c.id), zap.Error(err))
				return
			}

			// non-blocking send into the processing queue so a slow worker
			// pool never stalls the reader
			select {
			case c.manager.inbound <- inboundMessage{client: c, event: ev}:
			case <-time.After(inboundSendTimeout):
				c.logger.Warn("inbound queue full, dropping client", zap.String("client_id", c.id))
				c.cancel()
				c.conn.Close()
			case <-c.ctx.Done():
				return
			}
		}
	}
}

func (c *Client) writeMessages() {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()

		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.egress:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Warn("write error", zap.String("client_id", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("ping failed", zap.String("client_id", c.id), zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// Send enqueues ev for delivery. Returns false when the client is closed or
// its egress buffer stayed full past the send timeout.
func (c *Client) Send(ev event.WsEvent) bool {
	select {
	case <-c.ctx.Done():
		return false
	case c.egress <- ev:
		return true
	case <-time.After(sendTimeout):
		c.logger.Warn("egress full, dropping event",
			zap.String("client_id", c.id),
			zap.String("event", ev.Event),
		)
		return false
	}
}

// Close tears the client down exactly once: the context cancel stops both
// pumps and any presence broadcast bound to this connection.
func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()

		// egress stays open so concurrent Sends fail on ctx instead of
		// panicking; the write pump exits on ctx and closes the conn
		go func() {
			// WriteControl is safe alongside the write pump
			_ = c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
			select {
			case <-c.connClosed:
			case <-time.After(5 * time.Second):
				_ = c.conn.Close()
			}
		}()
	})
}
