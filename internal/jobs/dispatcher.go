package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/profilescout/profilescout/internal/chat"
	"github.com/profilescout/profilescout/internal/metrics"
	"github.com/profilescout/profilescout/internal/profile"
	"github.com/profilescout/profilescout/internal/similarity"
)

// Kind selects the job body to run.
type Kind string

const (
	KindSearch  Kind = "search"
	KindCompare Kind = "compare"
)

const (
	maxDirectoryCandidates = 10
	maxRankedResults       = 5
	maxExplanationLength   = 100

	// Retries are only worth it when the provider has been responsive.
	retryAvgThreshold = time.Second
)

const apologyMessage = "Sorry, something went wrong while processing your request. Please try again later."

// Scorer is the similarity surface the job bodies need.
type Scorer interface {
	Compare(ctx context.Context, a, b *profile.Record) *similarity.Result
	Rank(ctx context.Context, base *profile.Record, candidates []*profile.Record, limit int) []*similarity.Result
}

// Request describes one submitted job.
type Request struct {
	Kind       Kind
	UserID     string
	ChannelID  string
	BaseRef    string
	CompareRef string
}

// Dispatcher runs jobs on background goroutines. Submission never blocks the
// caller, every job failure ends in a user-visible message, and each user has
// at most one job in flight at a time.
type Dispatcher struct {
	client  chat.Client
	source  profile.Source
	scorer  Scorer
	tracker *metrics.Tracker

	mu     sync.Mutex
	active map[string]string // user-id -> job-id
	wg     sync.WaitGroup
}

// NewDispatcher wires a job dispatcher. The tracker may be nil.
func NewDispatcher(client chat.Client, source profile.Source, scorer Scorer, tracker *metrics.Tracker) *Dispatcher {
	return &Dispatcher{
		client:  client,
		source:  source,
		scorer:  scorer,
		tracker: tracker,
		active:  make(map[string]string),
	}
}

// Submit launches the requested job and returns immediately. A user with a
// job already running gets told to wait instead of a second goroutine.
func (d *Dispatcher) Submit(ctx context.Context, req Request) {
	jobID := uuid.NewString()

	d.mu.Lock()
	if _, busy := d.active[req.UserID]; busy {
		d.mu.Unlock()
		d.post(ctx, req.ChannelID, "I'm still working on your previous request. I'll let you know as soon as it's done.")
		return
	}
	d.active[req.UserID] = jobID
	d.mu.Unlock()

	// Jobs outlive the inbound delivery that triggered them. Webhook
	// handlers in particular get their request context cancelled as soon
	// as the handler returns, so the job must not inherit that deadline.
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			delete(d.active, req.UserID)
			d.mu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("jobs: job %s panicked: %v", jobID, r)
				d.post(ctx, req.ChannelID, apologyMessage)
			}
		}()

		log.Printf("jobs: starting %s job %s for user %s", req.Kind, jobID, req.UserID)
		switch req.Kind {
		case KindSearch:
			d.runSearch(ctx, req)
		case KindCompare:
			d.runCompare(ctx, req)
		default:
			log.Printf("jobs: unknown job kind %q", req.Kind)
		}
	}()
}

// Wait blocks until all in-flight jobs have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) runSearch(ctx context.Context, req Request) {
	base, err := d.fetchProfile(ctx, req.BaseRef)
	if err != nil {
		d.postFetchFailure(ctx, req.ChannelID, req.BaseRef, err)
		return
	}

	members, err := d.client.ListMembers(ctx)
	if err != nil {
		log.Printf("jobs: listing members: %v", err)
		d.post(ctx, req.ChannelID, apologyMessage)
		return
	}

	var eligible []chat.Member
	for _, m := range members {
		if m.IsBot || m.Deleted || m.DisplayName == "" || m.ID == req.UserID {
			continue
		}
		eligible = append(eligible, m)
		if len(eligible) == maxDirectoryCandidates {
			break
		}
	}

	var candidates []*profile.Record
	memberByURL := make(map[string]chat.Member)
	headlineByURL := make(map[string]string)
	for _, m := range eligible {
		rec, err := d.source.SearchByName(ctx, m.DisplayName)
		if err != nil {
			if !errors.Is(err, profile.ErrNotFound) {
				log.Printf("jobs: resolving %s: %v", m.DisplayName, err)
			}
			continue
		}
		// Two members can slug to the same vanity URL; score it once.
		if _, dup := memberByURL[rec.ProfileURL]; dup {
			continue
		}
		candidates = append(candidates, rec)
		memberByURL[rec.ProfileURL] = m
		headlineByURL[rec.ProfileURL] = rec.Headline
	}

	if len(candidates) == 0 {
		d.post(ctx, req.ChannelID, "I couldn't find matching profiles for anyone in this workspace. Sorry about that!")
		return
	}

	results := d.scorer.Rank(ctx, base, candidates, maxRankedResults)
	d.post(ctx, req.ChannelID, renderRanking(base, results, memberByURL, headlineByURL))
}

func (d *Dispatcher) runCompare(ctx context.Context, req Request) {
	base, err := d.fetchProfile(ctx, req.BaseRef)
	if err != nil {
		d.postFetchFailure(ctx, req.ChannelID, req.BaseRef, err)
		return
	}
	other, err := d.fetchProfile(ctx, req.CompareRef)
	if err != nil {
		d.postFetchFailure(ctx, req.ChannelID, req.CompareRef, err)
		return
	}

	res := d.scorer.Compare(ctx, base, other)
	d.post(ctx, req.ChannelID, renderComparison(base, other, res))
}

// fetchProfile retries one transport failure, but only while the provider's
// recent average latency suggests a retry is likely to finish quickly.
func (d *Dispatcher) fetchProfile(ctx context.Context, url string) (*profile.Record, error) {
	rec, err := d.source.FetchProfile(ctx, url)
	if err == nil || errors.Is(err, profile.ErrNotFound) {
		return rec, err
	}
	if !d.retryWorthwhile("profile_fetch") {
		return nil, err
	}
	log.Printf("jobs: retrying profile fetch for %s after: %v", url, err)
	return d.source.FetchProfile(ctx, url)
}

func (d *Dispatcher) retryWorthwhile(operation string) bool {
	if d.tracker == nil {
		return true
	}
	stats, ok := d.tracker.Summarize().PerOperation[operation]
	if !ok {
		return true
	}
	return stats.Avg < retryAvgThreshold
}

func (d *Dispatcher) postFetchFailure(ctx context.Context, channelID, url string, err error) {
	if errors.Is(err, profile.ErrNotFound) {
		d.post(ctx, channelID, fmt.Sprintf("I couldn't find a profile at %s. Please double-check the URL.", url))
		return
	}
	log.Printf("jobs: fetching %s: %v", url, err)
	d.post(ctx, channelID, fmt.Sprintf("I ran into an error retrieving the profile at %s. Please try again later.", url))
}

func (d *Dispatcher) post(ctx context.Context, channelID, text string) {
	if err := d.client.PostMessage(ctx, channelID, text); err != nil {
		log.Printf("jobs: posting to %s: %v", channelID, err)
	}
}

func renderRanking(base *profile.Record, results []*similarity.Result, memberByURL map[string]chat.Member, headlineByURL map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here are the most similar profiles to %s:\n\n", base.Name)
	for i, res := range results {
		if member, ok := memberByURL[res.ProfileURL]; ok {
			fmt.Fprintf(&b, "%d. <@%s> (*%s*) - %d%% match\n", i+1, member.ID, member.DisplayName, res.Score)
		} else {
			fmt.Fprintf(&b, "%d. *%s* - %d%% match\n", i+1, res.Name, res.Score)
		}
		if headline := headlineByURL[res.ProfileURL]; headline != "" {
			fmt.Fprintf(&b, "   %s\n", headline)
		}
		if exp := truncate(res.Explanation, maxExplanationLength); exp != "" {
			fmt.Fprintf(&b, "   %s\n", exp)
		}
		if res.ProfileURL != "" {
			fmt.Fprintf(&b, "   %s\n", res.ProfileURL)
		}
	}
	return b.String()
}

func renderComparison(a, b *profile.Record, res *similarity.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Comparison of %s and %s:\n\n", a.Name, b.Name)
	fmt.Fprintf(&sb, "Similarity Score: %d%%\n", res.Score)
	if res.Explanation != "" {
		fmt.Fprintf(&sb, "Explanation: %s\n", res.Explanation)
	}
	return sb.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
