package repo

import (
	"context"
	"sync"

	"github.com/yeshengliu/social-media/internal/model"
)

// memoryChatRepository keeps every inbox in process memory. It backs the
// server when no MongoDB URI is configured and is the implementation the
// store tests run against. One mutex covers both sides of the mirrored
// append, so the atomicity contract matches the mongo implementation.
type memoryChatRepository struct {
	mu      sync.RWMutex
	inboxes map[string]*model.Inbox
}

// NewMemoryChatRepository returns an in-memory ChatRepository.
func NewMemoryChatRepository() ChatRepository {
	return &memoryChatRepository{
		inboxes: make(map[string]*model.Inbox),
	}
}

func (m *memoryChatRepository) inbox(userID string) *model.Inbox {
	in, ok := m.inboxes[userID]
	if !ok {
		in = &model.Inbox{UserID: userID}
		m.inboxes[userID] = in
	}
	return in
}

func (m *memoryChatRepository) EnsureInbox(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inbox(userID)
	return nil
}

func (m *memoryChatRepository) LoadThread(_ context.Context, ownerID, peerID string) (*model.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	in, ok := m.inboxes[ownerID]
	if !ok {
		return nil, ErrThreadNotFound
	}

	t := in.Thread(peerID)
	if t == nil {
		return nil, ErrThreadNotFound
	}

	out := *t
	out.Messages = append([]model.Message(nil), t.Messages...)
	return &out, nil
}

func (m *memoryChatRepository) AppendMessage(_ context.Context, senderID, recipientID, body string) (*model.Message, error) {
	msg, err := newMessage(senderID, recipientID, body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.inbox(senderID).AppendToThread(recipientID, msg)
	if recipientID != senderID {
		m.inbox(recipientID).AppendToThread(senderID, msg)
	}
	return &msg, nil
}

func (m *memoryChatRepository) MarkThreadUnread(_ context.Context, ownerID, peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inbox(ownerID).MarkUnread(peerID)
	return nil
}

func (m *memoryChatRepository) MarkThreadRead(_ context.Context, ownerID, peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if in, ok := m.inboxes[ownerID]; ok {
		in.MarkRead(peerID)
	}
	return nil
}

func (m *memoryChatRepository) DeleteMessage(_ context.Context, ownerID, peerID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.inboxes[ownerID]
	if !ok {
		return ErrMessageNotFound
	}

	if !in.DeleteFromThread(peerID, messageID) {
		return ErrMessageNotFound
	}
	return nil
}

func (m *memoryChatRepository) Threads(_ context.Context, ownerID string) ([]model.ThreadSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	in, ok := m.inboxes[ownerID]
	if !ok {
		return []model.ThreadSummary{}, nil
	}
	return in.Summaries(), nil
}
