package hub

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yeshengliu/social-media/internal/event"
	"github.com/yeshengliu/social-media/internal/presence"
	"github.com/yeshengliu/social-media/internal/repo"
)

func TestHub_StopLeavesInboundOpen(t *testing.T) {
	req := require.New(t)
	registry := presence.NewRegistry(zap.NewNop())
	h := NewHub(registry, repo.NewMemoryChatRepository(), nil, zap.NewNop())

	// When the hub stops, the workers drain out on their context
	h.Stop()

	// Then a reader still holding the inbound channel can enqueue without
	// panicking on a closed channel
	req.NotPanics(func() {
		h.inbound <- inboundMessage{event: event.WsEvent{Event: event.EventJoin}}
	})
}
