package presence

import (
	"sort"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/yeshengliu/social-media/internal/event"
	"github.com/yeshengliu/social-media/internal/model"
)

// Session is the connection handle the registry holds for a reachable user.
type Session interface {
	ID() string
	Send(ev event.WsEvent) bool
	Close()
}

// Registry maps each connected user to their single live session. It is
// constructed once at process start and injected into the hub; all methods
// are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]Session
	byConn map[string]string
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		byUser: make(map[string]Session),
		byConn: make(map[string]string),
		logger: logger,
	}
}

// Join binds userID to s. A rejoin with the same session is a no-op. If the
// user is already bound to a different session, the stale one is evicted and
// closed without being sent anything, so at most one entry per user exists at
// any instant.
func (r *Registry) Join(userID string, s Session) {
	var stale Session

	r.mu.Lock()
	if cur, ok := r.byUser[userID]; ok {
		if cur.ID() == s.ID() {
			r.mu.Unlock()
			return
		}
		delete(r.byConn, cur.ID())
		stale = cur
	}
	r.byUser[userID] = s
	r.byConn[s.ID()] = userID
	r.mu.Unlock()

	if stale != nil {
		stale.Close()
		r.logger.Info("replaced stale presence entry",
			zap.String("user_id", userID),
			zap.String("stale_session", stale.ID()),
		)
	}
	r.logger.Debug("user joined", zap.String("user_id", userID), zap.String("session", s.ID()))
}

// Leave removes the entry held by s. Duplicate disconnects are tolerated; a
// session that was already replaced by a reconnect does not evict the new one.
func (r *Registry) Leave(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[s.ID()]
	if !ok {
		return
	}

	delete(r.byConn, s.ID())
	if cur, ok := r.byUser[userID]; ok && cur.ID() == s.ID() {
		delete(r.byUser, userID)
	}
	r.logger.Debug("user left", zap.String("user_id", userID), zap.String("session", s.ID()))
}

// Lookup returns the live session for userID, if any. Absence is the normal
// offline case, not a failure.
func (r *Registry) Lookup(userID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byUser[userID]
	return s, ok
}

// Snapshot lists currently connected users, excluding excludeUserID.
func (r *Registry) Snapshot(excludeUserID string) []model.ConnectedUser {
	r.mu.RLock()
	ids := lo.Keys(r.byUser)
	r.mu.RUnlock()

	ids = lo.Filter(ids, func(id string, _ int) bool { return id != excludeUserID })
	sort.Strings(ids)

	return lo.Map(ids, func(id string, _ int) model.ConnectedUser {
		return model.ConnectedUser{UserID: id}
	})
}
