package hub

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/yeshengliu/social-media/internal/event"
	"github.com/yeshengliu/social-media/internal/presence"
	"github.com/yeshengliu/social-media/internal/repo"
)

type inboundMessage struct {
	event  event.WsEvent
	client *Client
}

// Hub accepts WebSocket connections and fans their events out to a worker
// pool running the chat dispatch handler. Presence lives in the injected
// registry, never in package state.
type Hub struct {
	chat     *ChatHandler
	presence *presence.Registry
	logger   *zap.Logger

	clients    map[string]*Client
	clientsMu  sync.Mutex
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage

	upgrader websocket.Upgrader
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(registry *presence.Registry, chats repo.ChatRepository, allowedOrigins []string, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		chat:       NewChatHandler(registry, chats, logger),
		presence:   registry,
		logger:     logger,
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 1024),
		unregister: make(chan *Client, 1024),
		inbound:    make(chan inboundMessage, 4096), // buffer for burst handling
		ctx:        ctx,
		cancel:     cancel,
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return lo.Contains(allowedOrigins, origin)
		},
	}

	// run manager loop
	go h.run()

	// start worker loop
	for i := 0; i < workerPoolSize; i++ {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in := <-h.inbound:
					h.dispatch(in)
				}
			}
		}()
	}

	return h
}

// dispatch isolates each event: a panic in one handler is logged and never
// takes down the worker pool or other connections.
func (h *Hub) dispatch(in inboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("event handler panic",
				zap.Any("panic", r),
				zap.String("event", in.event.Event),
				zap.String("client_id", in.client.ID()),
			)
		}
	}()

	h.chat.HandleEvent(in.event, in.client)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.clientsMu.Lock()
	h.clients[c.ID()] = c
	h.clientsMu.Unlock()
}

// removeClient handles disconnect: the presence entry goes first, then the
// connection is closed, which also cancels the presence broadcast ticker.
func (h *Hub) removeClient(c *Client) {
	h.clientsMu.Lock()
	_, known := h.clients[c.ID()]
	delete(h.clients, c.ID())
	h.clientsMu.Unlock()

	h.presence.Leave(c)
	c.Close()

	if known {
		h.logger.Debug("client removed", zap.String("client_id", c.ID()), zap.String("user_id", c.UserID()))
	}
}

func (h *Hub) Stop() {
	h.cancel()

	h.clientsMu.Lock()
	clients := lo.Values(h.clients)
	h.clientsMu.Unlock()

	for _, c := range clients {
		h.presence.Leave(c)
		c.Close()
	}

	// inbound stays open: readers may still be selecting on it, and the
	// workers exit on ctx instead
	h.wg.Wait()
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	RegisterClient(conn, h)
}
