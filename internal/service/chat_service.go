package service

import (
	"context"

	"github.com/yeshengliu/social-media/internal/model"
	"github.com/yeshengliu/social-media/internal/repo"
)

// ChatService is the HTTP-side read surface over the chat store. Message
// mutation stays on the socket.
type ChatService interface {
	Threads(ctx context.Context, userID string) ([]model.ThreadSummary, error)
	EnsureInbox(ctx context.Context, userID string) error
}

type chatService struct {
	chats repo.ChatRepository
}

func NewChatService(chats repo.ChatRepository) ChatService {
	return &chatService{chats: chats}
}

func (s *chatService) Threads(ctx context.Context, userID string) ([]model.ThreadSummary, error) {
	return s.chats.Threads(ctx, userID)
}

func (s *chatService) EnsureInbox(ctx context.Context, userID string) error {
	return s.chats.EnsureInbox(ctx, userID)
}
