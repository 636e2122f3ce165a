package ingest

import (
	"context"
	"sync"

	"github.com/profilescout/profilescout/internal/chat"
)

// Handler consumes inbound messages that survive filtering. Satisfied by the
// conversation engine.
type Handler interface {
	HandleMessage(ctx context.Context, msg chat.Message)
}

// Source delivers inbound events to a Handler until its context is
// cancelled. Poller, SocketSource, and WebhookServer all implement it.
type Source interface {
	Run(ctx context.Context) error
}

// Filter drops events the bot must not react to: its own messages, other
// bots' messages, non-direct channels, and anything already seen. Marking
// happens before handling so a redelivered event can never be processed
// twice, even if handling is slow.
type Filter struct {
	selfUserID string

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewFilter creates a filter that drops events authored by selfUserID.
func NewFilter(selfUserID string) *Filter {
	return &Filter{
		selfUserID: selfUserID,
		seen:       make(map[string]struct{}),
	}
}

// Admit reports whether the message should be handled, and marks it seen.
func (f *Filter) Admit(msg chat.Message) bool {
	if msg.UserID == "" || msg.UserID == f.selfUserID {
		return false
	}
	if msg.BotID != "" {
		return false
	}
	if msg.ChannelType != "" && msg.ChannelType != chat.ChannelTypeIM {
		return false
	}
	if msg.ID == "" {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.seen[msg.ID]; dup {
		return false
	}
	f.seen[msg.ID] = struct{}{}
	return true
}

// MarkSeen records a message id without admitting it. Used to seed the
// filter with history present before the bot started.
func (f *Filter) MarkSeen(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[id] = struct{}{}
}
