package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Inbox is the per-user chat document in MongoDB. It owns every thread the
// user participates in; each thread is mirrored in the peer's inbox.
type Inbox struct {
	ID      primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID  string             `json:"userId" bson:"user_id"`
	Threads []Thread           `json:"chats" bson:"chats"`
}

// Thread is one conversation with a single peer, embedded in the inbox.
type Thread struct {
	MessagesWith string    `json:"messagesWith" bson:"messages_with"`
	Unread       int       `json:"unread" bson:"unread"`
	Messages     []Message `json:"messages" bson:"messages"`
}

// Message is immutable after creation except for the read flag; removal is
// per-viewer only.
type Message struct {
	MessageID string    `json:"messageId" bson:"message_id"`
	Sender    string    `json:"sender" bson:"sender"`
	Receiver  string    `json:"receiver" bson:"receiver"`
	Body      string    `json:"msg" bson:"msg"`
	CreatedAt time.Time `json:"date" bson:"date"`
	Read      bool      `json:"read" bson:"read"`
}

// ThreadSummary is the chat-list projection served over HTTP.
type ThreadSummary struct {
	MessagesWith string    `json:"messagesWith"`
	LastMessage  string    `json:"lastMsg"`
	Date         time.Time `json:"date"`
	Unread       int       `json:"unread"`
}

// ConnectedUser is one entry of the periodic presence push.
type ConnectedUser struct {
	UserID string `json:"userId"`
}

// Thread returns the thread with peer, or nil if the user never exchanged
// messages with them.
func (in *Inbox) Thread(peer string) *Thread {
	for i := range in.Threads {
		if in.Threads[i].MessagesWith == peer {
			return &in.Threads[i]
		}
	}
	return nil
}

// AppendToThread appends msg to the thread with peer, creating the thread on
// first contact, and moves that thread to the head of the inbox so the most
// recently active conversation lists first. Message order inside the thread
// stays createdAt-ascending because appends always carry the newest timestamp.
func (in *Inbox) AppendToThread(peer string, msg Message) {
	idx := -1
	for i := range in.Threads {
		if in.Threads[i].MessagesWith == peer {
			idx = i
			break
		}
	}

	if idx == -1 {
		in.Threads = append([]Thread{{MessagesWith: peer, Messages: []Message{msg}}}, in.Threads...)
		return
	}

	t := in.Threads[idx]
	t.Messages = append(t.Messages, msg)
	in.Threads = append(in.Threads[:idx], in.Threads[idx+1:]...)
	in.Threads = append([]Thread{t}, in.Threads...)
}

// DeleteFromThread removes the message with messageID from the thread with
// peer. Returns false if no such thread or message exists.
func (in *Inbox) DeleteFromThread(peer, messageID string) bool {
	t := in.Thread(peer)
	if t == nil {
		return false
	}

	for i := range t.Messages {
		if t.Messages[i].MessageID == messageID {
			t.Messages = append(t.Messages[:i], t.Messages[i+1:]...)
			return true
		}
	}
	return false
}

// MarkUnread bumps the unread counter on the thread with peer, creating the
// thread if the mirrored append has not landed yet.
func (in *Inbox) MarkUnread(peer string) {
	t := in.Thread(peer)
	if t == nil {
		in.Threads = append([]Thread{{MessagesWith: peer, Unread: 1}}, in.Threads...)
		return
	}
	t.Unread++
}

// MarkRead clears the unread counter and flags every message in the thread
// with peer as read. No-op when the thread does not exist.
func (in *Inbox) MarkRead(peer string) {
	t := in.Thread(peer)
	if t == nil {
		return
	}
	t.Unread = 0
	for i := range t.Messages {
		t.Messages[i].Read = true
	}
}

// Summaries projects the inbox into the chat-list shape, preserving the
// most-recent-first thread order.
func (in *Inbox) Summaries() []ThreadSummary {
	out := make([]ThreadSummary, 0, len(in.Threads))
	for _, t := range in.Threads {
		s := ThreadSummary{MessagesWith: t.MessagesWith, Unread: t.Unread}
		if n := len(t.Messages); n > 0 {
			s.LastMessage = t.Messages[n-1].Body
			s.Date = t.Messages[n-1].CreatedAt
		}
		out = append(out, s)
	}
	return out
}
