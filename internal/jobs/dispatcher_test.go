package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/profilescout/profilescout/internal/chat"
	"github.com/profilescout/profilescout/internal/metrics"
	"github.com/profilescout/profilescout/internal/profile"
	"github.com/profilescout/profilescout/internal/similarity"
)

type fakeClient struct {
	mu      sync.Mutex
	posts   []string
	members []chat.Member
}

func (f *fakeClient) AuthenticatedIdentity(ctx context.Context) (*chat.Identity, error) {
	return &chat.Identity{UserID: "UBOT"}, nil
}

func (f *fakeClient) ListDirectMessageChannels(ctx context.Context) ([]chat.Channel, error) {
	return nil, nil
}

func (f *fakeClient) FetchRecentMessages(ctx context.Context, channelID string, limit int) ([]chat.Message, error) {
	return nil, nil
}

func (f *fakeClient) PostMessage(ctx context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, text)
	return nil
}

func (f *fakeClient) ListMembers(ctx context.Context) ([]chat.Member, error) {
	return f.members, nil
}

func (f *fakeClient) allPosts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.posts...)
}

type fakeSource struct {
	mu       sync.Mutex
	profiles map[string]*profile.Record // keyed by URL
	byName   map[string]*profile.Record
	fetchErr error
	searches []string
}

func (f *fakeSource) FetchProfile(ctx context.Context, url string) (*profile.Record, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	rec, ok := f.profiles[url]
	if !ok {
		return nil, profile.ErrNotFound
	}
	return rec, nil
}

func (f *fakeSource) SearchByName(ctx context.Context, name string) (*profile.Record, error) {
	f.mu.Lock()
	f.searches = append(f.searches, name)
	f.mu.Unlock()
	rec, ok := f.byName[name]
	if !ok {
		return nil, profile.ErrNotFound
	}
	return rec, nil
}

type fakeScorer struct {
	block chan struct{} // when set, Rank/Compare wait until closed
	panic bool
}

func (f *fakeScorer) Compare(ctx context.Context, a, b *profile.Record) *similarity.Result {
	if f.panic {
		panic("scorer blew up")
	}
	if f.block != nil {
		<-f.block
	}
	return &similarity.Result{Score: 75, Explanation: "close match", ProfileURL: b.ProfileURL, Name: b.Name}
}

func (f *fakeScorer) Rank(ctx context.Context, base *profile.Record, candidates []*profile.Record, limit int) []*similarity.Result {
	if f.panic {
		panic("scorer blew up")
	}
	if f.block != nil {
		<-f.block
	}
	var results []*similarity.Result
	for i, c := range candidates {
		if limit > 0 && i == limit {
			break
		}
		results = append(results, &similarity.Result{
			Score:       90 - i,
			Explanation: "overlap",
			ProfileURL:  c.ProfileURL,
			Name:        c.Name,
		})
	}
	return results
}

func urlFor(name string) string {
	return "https://linkedin.com/in/" + strings.ToLower(strings.ReplaceAll(name, " ", ""))
}

func TestSearchJobPostsRanking(t *testing.T) {
	base := &profile.Record{Name: "Base User", ProfileURL: "https://linkedin.com/in/base"}

	source := &fakeSource{
		profiles: map[string]*profile.Record{base.ProfileURL: base},
		byName:   map[string]*profile.Record{},
	}
	client := &fakeClient{}

	// 12 eligible members plus accounts the filter must drop.
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("Member %d", i)
		client.members = append(client.members, chat.Member{ID: fmt.Sprintf("U%d", i), DisplayName: name})
		source.byName[name] = &profile.Record{Name: name, ProfileURL: urlFor(name)}
	}
	client.members = append(client.members,
		chat.Member{ID: "UBOTX", DisplayName: "Botty", IsBot: true},
		chat.Member{ID: "UGONE", DisplayName: "Ghost", Deleted: true},
		chat.Member{ID: "UNONAME"},
	)

	d := NewDispatcher(client, source, &fakeScorer{}, nil)
	d.Submit(context.Background(), Request{
		Kind: KindSearch, UserID: "UREQ", ChannelID: "D1", BaseRef: base.ProfileURL,
	})
	d.Wait()

	if len(source.searches) != 10 {
		t.Errorf("directory sample not capped at 10, got %d lookups", len(source.searches))
	}
	for _, name := range source.searches {
		if name == "Botty" || name == "Ghost" {
			t.Errorf("filtered account %q was looked up", name)
		}
	}

	posts := client.allPosts()
	if len(posts) != 1 {
		t.Fatalf("expected 1 outbound message, got %d", len(posts))
	}
	if !strings.Contains(posts[0], "Member 0") {
		t.Errorf("ranking message should name directory members: %q", posts[0])
	}
	if strings.Count(posts[0], "% match") != 5 {
		t.Errorf("expected 5 ranked entries, got: %q", posts[0])
	}
}

func TestSearchJobBaseNotFound(t *testing.T) {
	source := &fakeSource{profiles: map[string]*profile.Record{}}
	client := &fakeClient{}

	d := NewDispatcher(client, source, &fakeScorer{}, nil)
	d.Submit(context.Background(), Request{
		Kind: KindSearch, UserID: "U1", ChannelID: "D1", BaseRef: "https://linkedin.com/in/missing",
	})
	d.Wait()

	posts := client.allPosts()
	if len(posts) != 1 {
		t.Fatalf("expected 1 failure message, got %d", len(posts))
	}
	if !strings.Contains(posts[0], "https://linkedin.com/in/missing") {
		t.Errorf("failure should name the URL: %q", posts[0])
	}
}

func TestSearchJobNoCandidates(t *testing.T) {
	base := &profile.Record{Name: "Base", ProfileURL: "https://linkedin.com/in/base"}
	source := &fakeSource{
		profiles: map[string]*profile.Record{base.ProfileURL: base},
		byName:   map[string]*profile.Record{},
	}
	client := &fakeClient{members: []chat.Member{{ID: "U1", DisplayName: "No Profile"}}}

	d := NewDispatcher(client, source, &fakeScorer{}, nil)
	d.Submit(context.Background(), Request{
		Kind: KindSearch, UserID: "UREQ", ChannelID: "D1", BaseRef: base.ProfileURL,
	})
	d.Wait()

	posts := client.allPosts()
	if len(posts) != 1 || !strings.Contains(posts[0], "couldn't find") {
		t.Errorf("expected a no-candidates message, got %v", posts)
	}
}

func TestCompareJobTargetedFailure(t *testing.T) {
	base := &profile.Record{Name: "Base", ProfileURL: "https://linkedin.com/in/base"}
	source := &fakeSource{profiles: map[string]*profile.Record{base.ProfileURL: base}}
	client := &fakeClient{}

	d := NewDispatcher(client, source, &fakeScorer{}, nil)
	d.Submit(context.Background(), Request{
		Kind: KindCompare, UserID: "U1", ChannelID: "D1",
		BaseRef: base.ProfileURL, CompareRef: "https://linkedin.com/in/absent",
	})
	d.Wait()

	posts := client.allPosts()
	if len(posts) != 1 {
		t.Fatalf("expected 1 message, got %d", len(posts))
	}
	if !strings.Contains(posts[0], "https://linkedin.com/in/absent") {
		t.Errorf("failure must name the side that failed: %q", posts[0])
	}
	if strings.Contains(posts[0], "in/base") {
		t.Errorf("failure must not blame the healthy side: %q", posts[0])
	}
}

func TestCompareJobSuccess(t *testing.T) {
	a := &profile.Record{Name: "Alice", ProfileURL: "https://linkedin.com/in/alice"}
	b := &profile.Record{Name: "Bob", ProfileURL: "https://linkedin.com/in/bob"}
	source := &fakeSource{profiles: map[string]*profile.Record{a.ProfileURL: a, b.ProfileURL: b}}
	client := &fakeClient{}

	d := NewDispatcher(client, source, &fakeScorer{}, nil)
	d.Submit(context.Background(), Request{
		Kind: KindCompare, UserID: "U1", ChannelID: "D1",
		BaseRef: a.ProfileURL, CompareRef: b.ProfileURL,
	})
	d.Wait()

	posts := client.allPosts()
	if len(posts) != 1 {
		t.Fatalf("expected 1 message, got %d", len(posts))
	}
	if !strings.Contains(posts[0], "Similarity Score: 75%") {
		t.Errorf("unexpected comparison message: %q", posts[0])
	}
}

func TestSubmitRejectsSecondJobForUser(t *testing.T) {
	a := &profile.Record{Name: "Alice", ProfileURL: "https://linkedin.com/in/alice"}
	b := &profile.Record{Name: "Bob", ProfileURL: "https://linkedin.com/in/bob"}
	source := &fakeSource{profiles: map[string]*profile.Record{a.ProfileURL: a, b.ProfileURL: b}}
	client := &fakeClient{}
	scorer := &fakeScorer{block: make(chan struct{})}

	d := NewDispatcher(client, source, scorer, nil)
	req := Request{Kind: KindCompare, UserID: "U1", ChannelID: "D1", BaseRef: a.ProfileURL, CompareRef: b.ProfileURL}
	d.Submit(context.Background(), req)
	d.Submit(context.Background(), req)

	// The second submission must answer synchronously while the first is
	// still blocked inside the scorer.
	posts := client.allPosts()
	if len(posts) != 1 || !strings.Contains(posts[0], "still working") {
		t.Errorf("expected a busy message for the second submission, got %v", posts)
	}

	close(scorer.block)
	d.Wait()
}

func TestJobPanicBecomesApology(t *testing.T) {
	a := &profile.Record{Name: "Alice", ProfileURL: "https://linkedin.com/in/alice"}
	b := &profile.Record{Name: "Bob", ProfileURL: "https://linkedin.com/in/bob"}
	source := &fakeSource{profiles: map[string]*profile.Record{a.ProfileURL: a, b.ProfileURL: b}}
	client := &fakeClient{}

	d := NewDispatcher(client, source, &fakeScorer{panic: true}, nil)
	d.Submit(context.Background(), Request{
		Kind: KindCompare, UserID: "U1", ChannelID: "D1",
		BaseRef: a.ProfileURL, CompareRef: b.ProfileURL,
	})
	d.Wait()

	posts := client.allPosts()
	if len(posts) != 1 || !strings.Contains(posts[0], "Sorry") {
		t.Errorf("expected an apology after a panic, got %v", posts)
	}
}

// cancelSensitiveSource fails any call whose context is already done, like a
// real HTTP client would.
type cancelSensitiveSource struct {
	profiles map[string]*profile.Record
}

func (c *cancelSensitiveSource) FetchProfile(ctx context.Context, url string) (*profile.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := c.profiles[url]
	if !ok {
		return nil, profile.ErrNotFound
	}
	return rec, nil
}

func (c *cancelSensitiveSource) SearchByName(ctx context.Context, name string) (*profile.Record, error) {
	return nil, profile.ErrNotFound
}

func TestJobSurvivesSubmissionContextCancel(t *testing.T) {
	a := &profile.Record{Name: "Alice", ProfileURL: "https://linkedin.com/in/alice"}
	b := &profile.Record{Name: "Bob", ProfileURL: "https://linkedin.com/in/bob"}
	source := &cancelSensitiveSource{profiles: map[string]*profile.Record{a.ProfileURL: a, b.ProfileURL: b}}
	client := &fakeClient{}

	d := NewDispatcher(client, source, &fakeScorer{}, nil)

	// A webhook handler's request context dies the moment the handler
	// returns; the job must keep running anyway.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Submit(ctx, Request{
		Kind: KindCompare, UserID: "U1", ChannelID: "D1",
		BaseRef: a.ProfileURL, CompareRef: b.ProfileURL,
	})
	d.Wait()

	posts := client.allPosts()
	if len(posts) != 1 {
		t.Fatalf("expected 1 message, got %d", len(posts))
	}
	if !strings.Contains(posts[0], "Similarity Score: 75%") {
		t.Errorf("job should complete despite the dead submission context, got %q", posts[0])
	}
}

func TestSearchJobDedupesCandidatesByURL(t *testing.T) {
	base := &profile.Record{Name: "Base", ProfileURL: "https://linkedin.com/in/base"}
	shared := &profile.Record{Name: "Alice Smith", ProfileURL: "https://linkedin.com/in/alicesmith"}
	source := &fakeSource{
		profiles: map[string]*profile.Record{base.ProfileURL: base},
		byName: map[string]*profile.Record{
			"Alice Smith": shared,
			"ALICE SMITH": shared,
		},
	}
	client := &fakeClient{members: []chat.Member{
		{ID: "U1", DisplayName: "Alice Smith"},
		{ID: "U2", DisplayName: "ALICE SMITH"},
	}}

	d := NewDispatcher(client, source, &fakeScorer{}, nil)
	d.Submit(context.Background(), Request{
		Kind: KindSearch, UserID: "UREQ", ChannelID: "D1", BaseRef: base.ProfileURL,
	})
	d.Wait()

	posts := client.allPosts()
	if len(posts) != 1 {
		t.Fatalf("expected 1 message, got %d", len(posts))
	}
	if got := strings.Count(posts[0], "% match"); got != 1 {
		t.Errorf("candidates sharing a vanity URL must be scored once, got %d entries: %q", got, posts[0])
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("é", 120)
	got := truncate(long, 100)
	if got != strings.Repeat("é", 100)+"..." {
		t.Errorf("truncation split or miscounted runes: %q", got)
	}
	if truncate("short", 100) != "short" {
		t.Error("short strings must pass through untouched")
	}
}

func TestRankingTruncatesLongExplanations(t *testing.T) {
	long := strings.Repeat("a", 150)
	results := []*similarity.Result{
		{Score: 80, Explanation: long, ProfileURL: "https://linkedin.com/in/x", Name: "X"},
	}
	out := renderRanking(&profile.Record{Name: "Base"}, results, nil, nil)
	if strings.Contains(out, long) {
		t.Error("explanation should be truncated")
	}
	if !strings.Contains(out, strings.Repeat("a", 100)+"...") {
		t.Errorf("expected 100-char truncation with ellipsis: %q", out)
	}
}

func TestRetryPostureFollowsProviderLatency(t *testing.T) {
	source := &fakeSource{fetchErr: errors.New("connection reset")}
	client := &fakeClient{}

	d := NewDispatcher(client, source, &fakeScorer{}, nil)
	if !d.retryWorthwhile("profile_fetch") {
		t.Error("nil tracker should allow retries")
	}

	tracker := metrics.NewTracker()
	d = NewDispatcher(client, source, &fakeScorer{}, tracker)
	if !d.retryWorthwhile("profile_fetch") {
		t.Error("unknown operation should allow retries")
	}

	tracker.Record("profile_fetch", 3*time.Second, nil)
	if d.retryWorthwhile("profile_fetch") {
		t.Error("slow provider should suppress retries")
	}

	fast := metrics.NewTracker()
	fast.Record("profile_fetch", 100*time.Millisecond, nil)
	d = NewDispatcher(client, source, &fakeScorer{}, fast)
	if !d.retryWorthwhile("profile_fetch") {
		t.Error("fast provider should allow retries")
	}
}
