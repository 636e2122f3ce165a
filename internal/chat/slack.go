package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/profilescout/profilescout/internal/metrics"
)

const slackAPIURL = "https://slack.com/api"

// SlackClient implements Client against the Slack Web API via direct HTTP.
type SlackClient struct {
	token   string
	baseURL string
	client  *http.Client
	tracker *metrics.Tracker
}

// NewSlackClient creates a Slack Web API client. The tracker may be nil, in
// which case call timings are not recorded.
func NewSlackClient(token string, tracker *metrics.Tracker) *SlackClient {
	return &SlackClient{
		token:   token,
		baseURL: slackAPIURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		tracker: tracker,
	}
}

// SetBaseURL overrides the API base URL (used by tests).
func (c *SlackClient) SetBaseURL(u string) { c.baseURL = u }

type slackAuthTestResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	UserID string `json:"user_id"`
	User   string `json:"user"`
}

type slackChannel struct {
	ID   string `json:"id"`
	IsIM bool   `json:"is_im"`
}

type slackConversationsListResponse struct {
	OK       bool           `json:"ok"`
	Error    string         `json:"error"`
	Channels []slackChannel `json:"channels"`
}

type slackMessage struct {
	TS          string `json:"ts"`
	User        string `json:"user"`
	Text        string `json:"text"`
	BotID       string `json:"bot_id"`
	ChannelType string `json:"channel_type"`
}

type slackHistoryResponse struct {
	OK       bool           `json:"ok"`
	Error    string         `json:"error"`
	Messages []slackMessage `json:"messages"`
}

type slackPostMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type slackPostMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	TS    string `json:"ts"`
}

type slackMember struct {
	ID       string `json:"id"`
	RealName string `json:"real_name"`
	IsBot    bool   `json:"is_bot"`
	Deleted  bool   `json:"deleted"`
}

type slackUsersListResponse struct {
	OK      bool          `json:"ok"`
	Error   string        `json:"error"`
	Members []slackMember `json:"members"`
}

// AuthenticatedIdentity resolves the bot's own user id and name.
func (c *SlackClient) AuthenticatedIdentity(ctx context.Context) (*Identity, error) {
	var resp slackAuthTestResponse
	if err := c.call(ctx, "slack_auth_test", http.MethodPost, "auth.test", nil, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("slack auth.test failed: %s", resp.Error)
	}
	return &Identity{UserID: resp.UserID, UserName: resp.User}, nil
}

// ListDirectMessageChannels enumerates the bot's open DM channels.
func (c *SlackClient) ListDirectMessageChannels(ctx context.Context) ([]Channel, error) {
	params := url.Values{"types": {"im"}, "limit": {"200"}}
	var resp slackConversationsListResponse
	if err := c.call(ctx, "slack_conversations_list", http.MethodGet, "conversations.list", params, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("slack conversations.list failed: %s", resp.Error)
	}
	channels := make([]Channel, 0, len(resp.Channels))
	for _, ch := range resp.Channels {
		channels = append(channels, Channel{ID: ch.ID, IsIM: ch.IsIM})
	}
	return channels, nil
}

// FetchRecentMessages returns the most recent messages of a channel, newest
// first, capped to limit. Messages inherit the DM channel type since only IM
// channels are ever queried.
func (c *SlackClient) FetchRecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	params := url.Values{"channel": {channelID}, "limit": {strconv.Itoa(limit)}}
	var resp slackHistoryResponse
	if err := c.call(ctx, "slack_conversations_history", http.MethodGet, "conversations.history", params, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("slack conversations.history failed for %s: %s", channelID, resp.Error)
	}
	msgs := make([]Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		msgs = append(msgs, Message{
			ID:          m.TS,
			UserID:      m.User,
			ChannelID:   channelID,
			Text:        m.Text,
			BotID:       m.BotID,
			ChannelType: ChannelTypeIM,
		})
	}
	return msgs, nil
}

// PostMessage sends text to a channel.
func (c *SlackClient) PostMessage(ctx context.Context, channelID, text string) error {
	body := slackPostMessageRequest{Channel: channelID, Text: text}
	meta := map[string]string{"channel": channelID}
	var resp slackPostMessageResponse
	if err := c.call(ctx, "slack_chat_post_message", http.MethodPost, "chat.postMessage", nil, body, &resp, metaOpt(meta)); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("slack chat.postMessage failed: %s", resp.Error)
	}
	return nil
}

// ListMembers returns the workspace directory.
func (c *SlackClient) ListMembers(ctx context.Context) ([]Member, error) {
	var resp slackUsersListResponse
	if err := c.call(ctx, "slack_users_list", http.MethodGet, "users.list", nil, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("slack users.list failed: %s", resp.Error)
	}
	members := make([]Member, 0, len(resp.Members))
	for _, m := range resp.Members {
		members = append(members, Member{
			ID:          m.ID,
			DisplayName: m.RealName,
			IsBot:       m.IsBot,
			Deleted:     m.Deleted,
		})
	}
	return members, nil
}

type callOpt func(*callConfig)

type callConfig struct {
	metadata map[string]string
}

func metaOpt(m map[string]string) callOpt {
	return func(c *callConfig) { c.metadata = m }
}

// call performs one Web API request, recording its duration under operation.
func (c *SlackClient) call(ctx context.Context, operation, method, endpoint string, params url.Values, reqBody, out any, opts ...callOpt) error {
	cfg := callConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	u := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshalling %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if c.tracker != nil {
		c.tracker.Record(operation, time.Since(start), cfg.metadata)
	}
	if err != nil {
		return fmt.Errorf("slack %s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack %s returned status %d: %s", endpoint, resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshalling %s response: %w", endpoint, err)
	}
	return nil
}
