package event

import (
	"encoding/json"
	"fmt"

	"github.com/yeshengliu/social-media/internal/model"
)

// Inbound event names, as sent by clients.
const (
	EventJoin                    = "join"
	EventLoadMessages            = "loadMessages"
	EventSendNewMsg              = "sendNewMsg"
	EventSendMsgFromNotification = "sendMsgFromNotification"
	EventDeleteMsg               = "deleteMsg"
)

// Outbound event names, as pushed to clients.
const (
	EventConnectedUsers          = "connectedUsers"
	EventMessagesLoaded          = "messagesLoaded"
	EventNoChatFound             = "noChatFound"
	EventMsgSent                 = "msgSent"
	EventMsgSentFromNotification = "msgSentFromNotification"
	EventNewMsgReceived          = "newMsgReceived"
	EventMsgDeleted              = "msgDeleted"
	EventError                   = "error"
)

// WsEvent is the wire envelope for both directions of the socket.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New builds an outbound envelope. A nil payload produces a bare signal
// event such as noChatFound or msgDeleted.
func New(name string, payload any) (WsEvent, error) {
	ev := WsEvent{Event: name}
	if payload == nil {
		return ev, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return WsEvent{}, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	ev.Payload = raw
	return ev, nil
}

type JoinPayload struct {
	UserID string `json:"userId" validate:"required"`
}

type LoadMessagesPayload struct {
	UserID       string `json:"userId" validate:"required"`
	MessagesWith string `json:"messagesWith" validate:"required"`
}

type SendMsgPayload struct {
	UserID          string `json:"userId" validate:"required"`
	MsgSendToUserID string `json:"msgSendToUserId" validate:"required"`
	Msg             string `json:"msg" validate:"required"`
}

type DeleteMsgPayload struct {
	UserID       string `json:"userId" validate:"required"`
	MessagesWith string `json:"messagesWith" validate:"required"`
	MessageID    string `json:"messageId" validate:"required"`
}

type ConnectedUsersPayload struct {
	Users []model.ConnectedUser `json:"users"`
}

type MessagesLoadedPayload struct {
	Chat model.Thread `json:"chat"`
}

type NewMsgPayload struct {
	NewMsg model.Message `json:"newMsg"`
}

// ErrorPayload is sent to the offending connection only.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
