package ingest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/profilescout/profilescout/internal/chat"
)

// WebhookServer ingests events pushed over HTTP. It answers the platform's
// URL-verification challenge and verifies request signatures when a signing
// secret is configured.
type WebhookServer struct {
	port          int
	signingSecret string
	filter        *Filter
	handler       Handler
	router        chi.Router
	httpServer    *http.Server
}

// NewWebhookServer creates a push-based source listening on port.
func NewWebhookServer(port int, signingSecret string, filter *Filter, handler Handler) *WebhookServer {
	s := &WebhookServer{
		port:          port,
		signingSecret: signingSecret,
		filter:        filter,
		handler:       handler,
	}
	s.router = s.buildRouter()
	return s
}

func (s *WebhookServer) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Slack-Signature", "X-Slack-Request-Timestamp"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Post("/events", s.handleEvent)

	return r
}

// Router exposes the underlying router (used by tests).
func (s *WebhookServer) Router() http.Handler {
	return s.router
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *WebhookServer) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("ingest: webhook server listening on :%d", s.port)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down webhook server: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// pushEvent is the top-level pushed payload.
type pushEvent struct {
	Type      string         `json:"type"`
	Challenge string         `json:"challenge"`
	Event     pushInnerEvent `json:"event"`
}

type pushInnerEvent struct {
	Type        string `json:"type"`
	User        string `json:"user"`
	Text        string `json:"text"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type"`
	TS          string `json:"ts"`
	BotID       string `json:"bot_id"`
}

func (s *WebhookServer) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if s.signingSecret != "" && !s.verifySignature(r, body) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var event pushEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "url_verification":
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"challenge": event.Challenge})

	case "event_callback":
		// Ack immediately; handling must not hold the platform's
		// delivery path hostage.
		w.WriteHeader(http.StatusOK)
		if event.Event.Type != "message" {
			return
		}
		msg := chat.Message{
			ID:          event.Event.TS,
			UserID:      event.Event.User,
			ChannelID:   event.Event.Channel,
			Text:        event.Event.Text,
			BotID:       event.Event.BotID,
			ChannelType: event.Event.ChannelType,
		}
		if s.filter.Admit(msg) {
			s.handler.HandleMessage(r.Context(), msg)
		}

	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (s *WebhookServer) verifySignature(r *http.Request, body []byte) bool {
	timestamp := r.Header.Get("X-Slack-Request-Timestamp")
	signature := r.Header.Get("X-Slack-Signature")
	if timestamp == "" || signature == "" {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	diff := time.Now().Unix() - ts
	if diff < 0 {
		diff = -diff
	}
	if diff > 300 {
		return false
	}

	baseString := fmt.Sprintf("v0:%s:%s", timestamp, string(body))
	mac := hmac.New(sha256.New, []byte(s.signingSecret))
	mac.Write([]byte(baseString))
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
