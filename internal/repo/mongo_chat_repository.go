package repo

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/yeshengliu/social-media/internal/db"
	"github.com/yeshengliu/social-media/internal/model"
)

const pairStripes = 64 // tune: 16/64/128 depending on load

type mongoChatRepository struct {
	mongoRepo *db.Repository[model.Inbox]
	logger    *zap.Logger

	// stripe locks keyed by the unordered user pair; the mirrored append and
	// every read/delete on the same pair take the same stripe, so no caller
	// ever observes one side of the mirror without the other
	stripes [pairStripes]sync.Mutex
}

// NewMongoChatRepository returns a ChatRepository backed by per-user inbox
// documents in MongoDB.
func NewMongoChatRepository(mongoRepo *db.Repository[model.Inbox], logger *zap.Logger) ChatRepository {
	return &mongoChatRepository{
		mongoRepo: mongoRepo,
		logger:    logger,
	}
}

func pairStripe(a, b string) uint32 {
	if b < a {
		a, b = b, a
	}

	h := sha1.Sum([]byte(a + "\x00" + b))
	return binary.BigEndian.Uint32(h[:4]) % pairStripes
}

func (m *mongoChatRepository) lockPair(a, b string) func() {
	s := &m.stripes[pairStripe(a, b)]
	s.Lock()
	return s.Unlock
}

func (m *mongoChatRepository) EnsureInbox(ctx context.Context, userID string) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("user_id", userID).Build()
	update := bson.M{"$setOnInsert": bson.M{"user_id": userID, "chats": []model.Thread{}}}

	if _, err := m.mongoRepo.Upsert(ctx, filter, update); err != nil {
		m.logger.Error("failed to ensure inbox", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("ensure inbox: %w", err)
	}
	return nil
}

// loadInbox returns nil without error when the user has no inbox document.
func (m *mongoChatRepository) loadInbox(ctx context.Context, userID string) (*model.Inbox, error) {
	filter := db.NewFilter().Eq("user_id", userID).Build()

	in, err := m.mongoRepo.FindOne(ctx, filter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("load inbox for %s: %w", userID, err)
	}
	return in, nil
}

func (m *mongoChatRepository) saveInbox(ctx context.Context, in *model.Inbox) error {
	filter := db.NewFilter().Eq("user_id", in.UserID).Build()

	if _, err := m.mongoRepo.ReplaceOne(ctx, filter, *in, true); err != nil {
		return fmt.Errorf("save inbox for %s: %w", in.UserID, err)
	}
	return nil
}

func (m *mongoChatRepository) LoadThread(ctx context.Context, ownerID, peerID string) (*model.Thread, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	unlock := m.lockPair(ownerID, peerID)
	defer unlock()

	in, err := m.loadInbox(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if in == nil {
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

func (m *mongoChatRepository) AppendMessage(ctx context.Context, senderID, recipientID, body string) (*model.Message, error) {
	msg, err := newMessage(senderID, recipientID, body)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	unlock := m.lockPair(senderID, recipientID)
	defer unlock()

	owners := []struct{ owner, peer string }{
		{senderID, recipientID},
		{recipientID, senderID},
	}
	if senderID == recipientID {
		owners = owners[:1]
	}

	for _, o := range owners {
		in, err := m.loadInbox(ctx, o.owner)
		if err != nil {
			return nil, err
		}
		if in == nil {
			in = &model.Inbox{UserID: o.owner}
		}

		in.AppendToThread(o.peer, msg)

		if err := m.saveInbox(ctx, in); err != nil {
			m.logger.Error("mirrored append failed",
				zap.String("sender", senderID),
				zap.String("recipient", recipientID),
				zap.Error(err),
			)
			return nil, err
		}
	}

	m.logger.Debug("message appended",
		zap.String("message_id", msg.MessageID),
		zap.String("sender", senderID),
		zap.String("recipient", recipientID),
	)
	return &msg, nil
}

func (m *mongoChatRepository) MarkThreadUnread(ctx context.Context, ownerID, peerID string) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	unlock := m.lockPair(ownerID, peerID)
	defer unlock()

	in, err := m.loadInbox(ctx, ownerID)
	if err != nil {
		return err
	}
	if in == nil {
		in = &model.Inbox{UserID: ownerID}
	}

	in.MarkUnread(peerID)
	return m.saveInbox(ctx, in)
}

func (m *mongoChatRepository) MarkThreadRead(ctx context.Context, ownerID, peerID string) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	unlock := m.lockPair(ownerID, peerID)
	defer unlock()

	in, err := m.loadInbox(ctx, ownerID)
	if err != nil {
		return err
	}
	if in == nil || in.Thread(peerID) == nil {
		return nil
	}

	in.MarkRead(peerID)
	return m.saveInbox(ctx, in)
}

func (m *mongoChatRepository) DeleteMessage(ctx context.Context, ownerID, peerID, messageID string) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	unlock := m.lockPair(ownerID, peerID)
	defer unlock()

	in, err := m.loadInbox(ctx, ownerID)
	if err != nil {
		return err
	}
	if in == nil {
		return ErrMessageNotFound
	}

	if !in.DeleteFromThread(peerID, messageID) {
		return ErrMessageNotFound
	}

	return m.saveInbox(ctx, in)
}

func (m *mongoChatRepository) Threads(ctx context.Context, ownerID string) ([]model.ThreadSummary, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	in, err := m.loadInbox(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return []model.ThreadSummary{}, nil
	}

	return in.Summaries(), nil
}
