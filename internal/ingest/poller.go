package ingest

import (
	"context"
	"log"
	"time"

	"github.com/profilescout/profilescout/internal/chat"
)

// Poller ingests events by periodically reading recent direct-message
// history. Transport errors are logged and the next tick tries again; the
// loop itself never dies.
type Poller struct {
	client       chat.Client
	filter       *Filter
	handler      Handler
	interval     time.Duration
	historyLimit int
}

// NewPoller creates a polling source.
func NewPoller(client chat.Client, filter *Filter, handler Handler, interval time.Duration, historyLimit int) *Poller {
	return &Poller{
		client:       client,
		filter:       filter,
		handler:      handler,
		interval:     interval,
		historyLimit: historyLimit,
	}
}

// Run polls until the context is cancelled. Messages already in history at
// startup are marked seen so the bot only reacts to new traffic.
func (p *Poller) Run(ctx context.Context) error {
	p.seedSeen(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) seedSeen(ctx context.Context) {
	channels, err := p.client.ListDirectMessageChannels(ctx)
	if err != nil {
		log.Printf("ingest: seeding history: %v", err)
		return
	}
	for _, ch := range channels {
		msgs, err := p.client.FetchRecentMessages(ctx, ch.ID, p.historyLimit)
		if err != nil {
			log.Printf("ingest: seeding channel %s: %v", ch.ID, err)
			continue
		}
		for _, msg := range msgs {
			p.filter.MarkSeen(msg.ID)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	channels, err := p.client.ListDirectMessageChannels(ctx)
	if err != nil {
		log.Printf("ingest: listing channels: %v", err)
		return
	}

	for _, ch := range channels {
		msgs, err := p.client.FetchRecentMessages(ctx, ch.ID, p.historyLimit)
		if err != nil {
			log.Printf("ingest: fetching history for %s: %v", ch.ID, err)
			continue
		}
		// History arrives newest first; handle in chronological order.
		for i := len(msgs) - 1; i >= 0; i-- {
			msg := msgs[i]
			if msg.ChannelID == "" {
				msg.ChannelID = ch.ID
			}
			if p.filter.Admit(msg) {
				p.handler.HandleMessage(ctx, msg)
			}
		}
	}
}
