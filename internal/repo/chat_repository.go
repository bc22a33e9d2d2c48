package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yeshengliu/social-media/internal/model"
)

var (
	ErrEmptyBody       = errors.New("message body cannot be empty")
	ErrThreadNotFound  = errors.New("no chat found for this pair")
	ErrMessageNotFound = errors.New("message not found")
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 10 * time.Second
)

// ChatRepository owns every thread and message. AppendMessage writes the
// message into both participants' inbox documents; the mirrored write is
// atomic with respect to every other operation on the same pair.
type ChatRepository interface {
	EnsureInbox(ctx context.Context, userID string) error
	LoadThread(ctx context.Context, ownerID, peerID string) (*model.Thread, error)
	AppendMessage(ctx context.Context, senderID, recipientID, body string) (*model.Message, error)
	MarkThreadUnread(ctx context.Context, ownerID, peerID string) error
	MarkThreadRead(ctx context.Context, ownerID, peerID string) error
	DeleteMessage(ctx context.Context, ownerID, peerID, messageID string) error
	Threads(ctx context.Context, ownerID string) ([]model.ThreadSummary, error)
}

// newMessage validates the body and stamps a fresh message. Rejection happens
// here, before either inbox is touched.
func newMessage(senderID, recipientID, body string) (model.Message, error) {
	if strings.TrimSpace(body) == "" {
		return model.Message{}, ErrEmptyBody
	}

	return model.Message{
		MessageID: uuid.NewString(),
		Sender:    senderID,
		Receiver:  recipientID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}
