package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/profilescout/profilescout/internal/chat"
)

const connectionsOpenURL = "https://slack.com/api/apps.connections.open"

// SocketSource ingests events over a socket-mode websocket connection. The
// connection is re-established with backoff whenever it drops.
type SocketSource struct {
	appToken   string
	filter     *Filter
	handler    Handler
	openURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// NewSocketSource creates a socket-mode source. appToken is the app-level
// token used to open connections.
func NewSocketSource(appToken string, filter *Filter, handler Handler) *SocketSource {
	return &SocketSource{
		appToken:   appToken,
		filter:     filter,
		handler:    handler,
		openURL:    connectionsOpenURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		dialer:     websocket.DefaultDialer,
	}
}

// SetOpenURL overrides the connection-open endpoint (used by tests).
func (s *SocketSource) SetOpenURL(u string) { s.openURL = u }

// Run connects and consumes events until the context is cancelled.
func (s *SocketSource) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := s.connectAndListen(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("ingest: socket connection lost: %v (reconnecting in %s)", err, backoff)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

type connectionsOpenResponse struct {
	OK    bool   `json:"ok"`
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

// envelope is the socket-mode frame. Every events_api frame must be acked by
// echoing its envelope id.
type envelope struct {
	EnvelopeID string          `json:"envelope_id"`
	Type       string          `json:"type"`
	Payload    envelopePayload `json:"payload"`
}

type envelopePayload struct {
	Event socketEvent `json:"event"`
}

type socketEvent struct {
	Type        string `json:"type"`
	User        string `json:"user"`
	Text        string `json:"text"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type"`
	TS          string `json:"ts"`
	BotID       string `json:"bot_id"`
}

func (s *SocketSource) connectAndListen(ctx context.Context) error {
	wsURL, err := s.openConnection(ctx)
	if err != nil {
		return err
	}

	conn, _, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dialing socket endpoint: %w", err)
	}
	defer conn.Close()

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading socket frame: %w", err)
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("ingest: malformed socket frame: %v", err)
			continue
		}

		if env.EnvelopeID != "" {
			ack, _ := json.Marshal(map[string]string{"envelope_id": env.EnvelopeID})
			if err := conn.WriteMessage(websocket.TextMessage, ack); err != nil {
				return fmt.Errorf("acking envelope: %w", err)
			}
		}

		if env.Type != "events_api" || env.Payload.Event.Type != "message" {
			continue
		}

		msg := chat.Message{
			ID:          env.Payload.Event.TS,
			UserID:      env.Payload.Event.User,
			ChannelID:   env.Payload.Event.Channel,
			Text:        env.Payload.Event.Text,
			BotID:       env.Payload.Event.BotID,
			ChannelType: env.Payload.Event.ChannelType,
		}
		if s.filter.Admit(msg) {
			s.handler.HandleMessage(ctx, msg)
		}
	}
}

func (s *SocketSource) openConnection(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.openURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating connections.open request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.appToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("opening socket connection: %w", err)
	}
	defer resp.Body.Close()

	var open connectionsOpenResponse
	if err := json.NewDecoder(resp.Body).Decode(&open); err != nil {
		return "", fmt.Errorf("decoding connections.open response: %w", err)
	}
	if !open.OK {
		return "", fmt.Errorf("connections.open failed: %s", open.Error)
	}
	return open.URL, nil
}
