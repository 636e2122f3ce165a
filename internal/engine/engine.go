package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/profilescout/profilescout/internal/chat"
	"github.com/profilescout/profilescout/internal/jobs"
)

// State is a conversation's position in the collection flow.
type State string

const (
	StateAwaitingConfirmation        State = "awaiting_confirmation"
	StateAwaitingBaseReference       State = "awaiting_base_reference"
	StateAwaitingModeChoice          State = "awaiting_mode_choice"
	StateAwaitingComparisonReference State = "awaiting_comparison_reference"
)

// conversation is the per-user flow state. Owned exclusively by the engine;
// removed on decline or on job handoff.
type conversation struct {
	state     State
	channelID string
	baseRef   string
}

// Submitter launches background jobs. Satisfied by *jobs.Dispatcher.
type Submitter interface {
	Submit(ctx context.Context, req jobs.Request)
}

// Poster sends outbound messages. Satisfied by chat.Client implementations.
type Poster interface {
	PostMessage(ctx context.Context, channelID, text string) error
}

// Engine interprets inbound messages against each user's conversation state
// and hands completed flows to the job dispatcher.
type Engine struct {
	poster    Poster
	submitter Submitter

	mu            sync.Mutex
	conversations map[string]*conversation // keyed by user-id
}

// New creates a conversation engine.
func New(poster Poster, submitter Submitter) *Engine {
	return &Engine{
		poster:        poster,
		submitter:     submitter,
		conversations: make(map[string]*conversation),
	}
}

var affirmatives = []string{"y", "yes", "sure", "ok", "okay"}

// isAffirmative reports whether the text contains any affirmative word.
// Substring containment, not exact match, so "yes please" counts.
func isAffirmative(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range affirmatives {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

const profileURLMarker = "linkedin.com/in/"

// HandleMessage advances the sender's conversation by one step. Every step
// that needs user-visible feedback sends exactly one outbound message before
// returning.
func (e *Engine) HandleMessage(ctx context.Context, msg chat.Message) {
	e.mu.Lock()
	conv, ok := e.conversations[msg.UserID]
	if !ok {
		conv = &conversation{state: StateAwaitingConfirmation, channelID: msg.ChannelID}
		e.conversations[msg.UserID] = conv
		e.mu.Unlock()
		e.post(ctx, msg.ChannelID, fmt.Sprintf(
			"Hello <@%s>! I can help you find people with similar professional profiles. Would you like to try? (yes/no)",
			msg.UserID))
		return
	}
	e.mu.Unlock()

	text := strings.TrimSpace(msg.Text)

	switch conv.state {
	case StateAwaitingConfirmation:
		e.handleConfirmation(ctx, msg.UserID, conv, text)
	case StateAwaitingBaseReference:
		e.handleBaseReference(ctx, conv, text)
	case StateAwaitingModeChoice:
		e.handleModeChoice(ctx, msg.UserID, conv, text)
	case StateAwaitingComparisonReference:
		e.handleComparisonReference(ctx, msg.UserID, conv, text)
	default:
		log.Printf("engine: user %s in unknown state %q, resetting", msg.UserID, conv.state)
		e.endConversation(msg.UserID)
	}
}

func (e *Engine) handleConfirmation(ctx context.Context, userID string, conv *conversation, text string) {
	if isAffirmative(text) {
		conv.state = StateAwaitingBaseReference
		e.post(ctx, conv.channelID, "Great! Please send me the profile URL you'd like to start from.")
		return
	}
	e.endConversation(userID)
	e.post(ctx, conv.channelID, "No problem! Message me anytime if you change your mind.")
}

func (e *Engine) handleBaseReference(ctx context.Context, conv *conversation, text string) {
	url, ok := extractProfileURL(text)
	if !ok {
		e.post(ctx, conv.channelID,
			"That doesn't look like a valid profile URL. Please send a link like https://linkedin.com/in/username")
		return
	}
	conv.baseRef = url
	conv.state = StateAwaitingModeChoice
	e.post(ctx, conv.channelID,
		"Got it! What would you like to do?\n1. Compare with another specific profile\n2. Search this workspace for similar profiles\nReply with 1 or 2.")
}

func (e *Engine) handleModeChoice(ctx context.Context, userID string, conv *conversation, text string) {
	switch text {
	case "1":
		conv.state = StateAwaitingComparisonReference
		e.post(ctx, conv.channelID, "Please send the profile URL you'd like to compare against.")
	case "2":
		req := jobs.Request{
			Kind:      jobs.KindSearch,
			UserID:    userID,
			ChannelID: conv.channelID,
			BaseRef:   conv.baseRef,
		}
		// Delete before submitting so a follow-up message starts fresh
		// instead of landing in a finished conversation.
		e.endConversation(userID)
		e.post(ctx, conv.channelID, "On it! I'll search the workspace and get back to you shortly.")
		e.submitter.Submit(ctx, req)
	default:
		e.post(ctx, conv.channelID, "Please reply with 1 or 2.")
	}
}

func (e *Engine) handleComparisonReference(ctx context.Context, userID string, conv *conversation, text string) {
	url, ok := extractProfileURL(text)
	if !ok {
		e.post(ctx, conv.channelID,
			"That doesn't look like a valid profile URL. Please send a link like https://linkedin.com/in/username")
		return
	}
	req := jobs.Request{
		Kind:       jobs.KindCompare,
		UserID:     userID,
		ChannelID:  conv.channelID,
		BaseRef:    conv.baseRef,
		CompareRef: url,
	}
	e.endConversation(userID)
	e.post(ctx, conv.channelID, "On it! I'll compare the two profiles and get back to you shortly.")
	e.submitter.Submit(ctx, req)
}

func (e *Engine) endConversation(userID string) {
	e.mu.Lock()
	delete(e.conversations, userID)
	e.mu.Unlock()
}

// ActiveConversations reports how many flows are currently live.
func (e *Engine) ActiveConversations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conversations)
}

func (e *Engine) post(ctx context.Context, channelID, text string) {
	if err := e.poster.PostMessage(ctx, channelID, text); err != nil {
		log.Printf("engine: posting to %s: %v", channelID, err)
	}
}

// extractProfileURL unwraps chat-platform link markup and validates the
// result. Markup arrives as <url> or <url|label>; only the url part counts.
func extractProfileURL(text string) (string, bool) {
	url := strings.TrimSpace(text)
	if strings.HasPrefix(url, "<") && strings.HasSuffix(url, ">") {
		url = url[1 : len(url)-1]
	}
	if i := strings.Index(url, "|"); i >= 0 {
		url = url[:i]
	}
	url = strings.TrimSpace(url)
	if !strings.Contains(url, profileURLMarker) {
		return "", false
	}
	return url, true
}
