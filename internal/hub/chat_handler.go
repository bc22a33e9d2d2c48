package hub

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yeshengliu/social-media/internal/event"
	"github.com/yeshengliu/social-media/internal/presence"
	"github.com/yeshengliu/social-media/internal/repo"
)

// presenceInterval is how often each identified connection receives the list
// of other connected users.
const presenceInterval = 10 * time.Second

// ChatHandler is the dispatch layer: it routes inbound events to the
// presence registry and the chat store, and decides between live delivery
// and unread-marking on every send. It holds no state of its own.
type ChatHandler struct {
	registry *presence.Registry
	chats    repo.ChatRepository
	validate *validator.Validate
	logger   *zap.Logger
}

func NewChatHandler(registry *presence.Registry, chats repo.ChatRepository, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		registry: registry,
		chats:    chats,
		validate: validator.New(),
		logger:   logger,
	}
}

// HandleEvent processes one inbound event for one connection.
func (h *ChatHandler) HandleEvent(ev event.WsEvent, c session) {
	switch ev.Event {
	case event.EventJoin:
		h.handleJoin(ev, c)
	case event.EventLoadMessages:
		h.handleLoadMessages(ev, c)
	case event.EventSendNewMsg:
		h.handleSendMsg(ev, c, false)
	case event.EventSendMsgFromNotification:
		h.handleSendMsg(ev, c, true)
	case event.EventDeleteMsg:
		h.handleDeleteMsg(ev, c)
	default:
		h.logger.Warn("unknown event type", zap.String("event", ev.Event), zap.String("client_id", c.ID()))
		h.sendError(c, "unknown_event", "unrecognized event type")
	}
}

// decode unmarshals and validates an inbound payload. On failure the sender
// gets an error event and false is returned.
func (h *ChatHandler) decode(ev event.WsEvent, c session, out any) bool {
	if err := json.Unmarshal(ev.Payload, out); err != nil {
		h.logger.Warn("malformed payload",
			zap.String("event", ev.Event),
			zap.String("client_id", c.ID()),
			zap.Error(err),
		)
		h.sendError(c, "invalid_payload", "failed to parse "+ev.Event+" payload")
		return false
	}

	if err := h.validate.Struct(out); err != nil {
		h.logger.Warn("invalid payload",
			zap.String("event", ev.Event),
			zap.String("client_id", c.ID()),
			zap.Error(err),
		)
		h.sendError(c, "invalid_payload", "missing required fields for "+ev.Event)
		return false
	}
	return true
}

func (h *ChatHandler) send(c presence.Session, name string, payload any) bool {
	ev, err := event.New(name, payload)
	if err != nil {
		h.logger.Error("failed to build event", zap.String("event", name), zap.Error(err))
		return false
	}
	return c.Send(ev)
}

func (h *ChatHandler) sendError(c presence.Session, code, message string) {
	h.send(c, event.EventError, event.ErrorPayload{Code: code, Message: message})
}

// handleJoin moves the connection from Unidentified to Identified and starts
// the per-connection presence broadcast. A duplicate join with the same
// connection is idempotent; a reconnect under the same user evicts the stale
// entry inside the registry.
func (h *ChatHandler) handleJoin(ev event.WsEvent, c session) {
	var p event.JoinPayload
	if !h.decode(ev, c, &p) {
		return
	}

	first := c.BindUser(p.UserID)

	// the registry only ever sees the bound identity; a join under a
	// different user on an already-bound connection must not evict that
	// user's live session
	bound := c.UserID()
	if bound != p.UserID {
		h.sendError(c, "already_joined", "connection is already bound to another user")
		return
	}

	h.registry.Join(bound, c)

	if first {
		go h.broadcastPresence(c, bound)
	}
}

// broadcastPresence pushes the connected-users list every presenceInterval
// until the connection closes. One ticker per identified connection, owned by
// the connection's context, torn down exactly once on disconnect.
func (h *ChatHandler) broadcastPresence(c session, userID string) {
	ticker := time.NewTicker(presenceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Context().Done():
			return
		case <-ticker.C:
			h.send(c, event.EventConnectedUsers, event.ConnectedUsersPayload{
				Users: h.registry.Snapshot(userID),
			})
		}
	}
}

func (h *ChatHandler) handleLoadMessages(ev event.WsEvent, c session) {
	var p event.LoadMessagesPayload
	if !h.decode(ev, c, &p) {
		return
	}

	thread, err := h.chats.LoadThread(c.Context(), p.UserID, p.MessagesWith)
	if err != nil {
		if errors.Is(err, repo.ErrThreadNotFound) {
			// never messaged before: a signal, not a failure
			h.send(c, event.EventNoChatFound, nil)
			return
		}
		h.logger.Error("load thread failed",
			zap.String("user_id", p.UserID),
			zap.String("peer_id", p.MessagesWith),
			zap.Error(err),
		)
		h.sendError(c, "store_failure", "failed to load messages")
		return
	}

	if err := h.chats.MarkThreadRead(c.Context(), p.UserID, p.MessagesWith); err != nil {
		h.logger.Warn("mark read failed",
			zap.String("user_id", p.UserID),
			zap.String("peer_id", p.MessagesWith),
			zap.Error(err),
		)
	}

	h.send(c, event.EventMessagesLoaded, event.MessagesLoadedPayload{Chat: *thread})
}

// handleSendMsg appends the message, then either pushes it live to the
// recipient or marks their thread unread. The fromNotification variant only
// changes the acknowledgment shape. The payload userId is trusted for routing
// even before a join: an unidentified peer simply misses the presence lookup
// and the message queues as unread.
func (h *ChatHandler) handleSendMsg(ev event.WsEvent, c session, fromNotification bool) {
	var p event.SendMsgPayload
	if !h.decode(ev, c, &p) {
		return
	}

	msg, err := h.chats.AppendMessage(c.Context(), p.UserID, p.MsgSendToUserID, p.Msg)
	if err != nil {
		if errors.Is(err, repo.ErrEmptyBody) {
			h.sendError(c, "empty_message", "message body cannot be empty")
			return
		}
		h.logger.Error("append message failed",
			zap.String("sender", p.UserID),
			zap.String("recipient", p.MsgSendToUserID),
			zap.Error(err),
		)
		h.sendError(c, "store_failure", "failed to send message")
		return
	}

	// a push that fails (recipient closing, egress saturated) is treated
	// like an offline recipient so the unread signal is never lost
	delivered := false
	if peer, ok := h.registry.Lookup(p.MsgSendToUserID); ok {
		delivered = h.send(peer, event.EventNewMsgReceived, event.NewMsgPayload{NewMsg: *msg})
	}
	if !delivered {
		if err := h.chats.MarkThreadUnread(c.Context(), p.MsgSendToUserID, p.UserID); err != nil {
			h.logger.Warn("mark unread failed",
				zap.String("recipient", p.MsgSendToUserID),
				zap.String("sender", p.UserID),
				zap.Error(err),
			)
		}
	}

	if fromNotification {
		h.send(c, event.EventMsgSentFromNotification, nil)
	} else {
		h.send(c, event.EventMsgSent, event.NewMsgPayload{NewMsg: *msg})
	}
}

// handleDeleteMsg removes the message from the requester's view only. The
// peer keeps their mirrored copy and is not notified.
func (h *ChatHandler) handleDeleteMsg(ev event.WsEvent, c session) {
	var p event.DeleteMsgPayload
	if !h.decode(ev, c, &p) {
		return
	}

	err := h.chats.DeleteMessage(c.Context(), p.UserID, p.MessagesWith, p.MessageID)
	if err != nil {
		if errors.Is(err, repo.ErrMessageNotFound) {
			h.logger.Debug("delete: message not found",
				zap.String("user_id", p.UserID),
				zap.String("message_id", p.MessageID),
			)
			return
		}
		h.logger.Error("delete message failed",
			zap.String("user_id", p.UserID),
			zap.String("message_id", p.MessageID),
			zap.Error(err),
		)
		h.sendError(c, "store_failure", "failed to delete message")
		return
	}

	h.send(c, event.EventMsgDeleted, nil)
}
