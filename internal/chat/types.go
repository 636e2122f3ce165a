package chat

import "context"

// ChannelTypeIM tags direct-message channels; the bot ignores every other
// channel type.
const ChannelTypeIM = "im"

// Message is the platform-message shape the core depends on. ID doubles as
// the deduplication key for event ingestion.
type Message struct {
	ID          string
	UserID      string
	ChannelID   string
	Text        string
	BotID       string
	ChannelType string
}

// Channel is a conversation container as reported by the platform.
type Channel struct {
	ID   string
	IsIM bool
}

// Member is a workspace directory entry.
type Member struct {
	ID          string
	DisplayName string
	IsBot       bool
	Deleted     bool
}

// Identity describes the authenticated bot account.
type Identity struct {
	UserID   string
	UserName string
}

// Client is the chat platform gateway. Implementations are thin I/O wrappers;
// no conversation state lives behind this interface.
type Client interface {
	AuthenticatedIdentity(ctx context.Context) (*Identity, error)
	ListDirectMessageChannels(ctx context.Context) ([]Channel, error)
	FetchRecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
	PostMessage(ctx context.Context, channelID, text string) error
	ListMembers(ctx context.Context) ([]Member, error)
}
