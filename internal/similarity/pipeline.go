package similarity

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/profilescout/profilescout/internal/llm"
	"github.com/profilescout/profilescout/internal/metrics"
	"github.com/profilescout/profilescout/internal/profile"
)

// Pipeline scores profile similarity through a generative-text backend.
// Scoring calls never fail outright: a backend or parsing failure degrades to
// a neutral result so rankings stay total.
type Pipeline struct {
	provider llm.Provider
	model    string
	tracker  *metrics.Tracker
}

// NewPipeline wires a scoring pipeline. The tracker may be nil.
func NewPipeline(provider llm.Provider, model string, tracker *metrics.Tracker) *Pipeline {
	return &Pipeline{provider: provider, model: model, tracker: tracker}
}

// Compare scores a single pair of profiles using the line-oriented response
// format.
func (p *Pipeline) Compare(ctx context.Context, a, b *profile.Record) *Result {
	body, err := p.complete(ctx, buildComparePrompt(a, b), false)
	if err != nil {
		log.Printf("similarity: comparison call failed: %v", err)
		return p.annotate(neutralResult(), b)
	}
	return p.annotate(parseLegacyResponse(body), b)
}

// Rank scores every candidate against the base profile and returns up to
// limit results, highest score first. Candidates sharing the base profile's
// URL are skipped. The sort is stable, so equal scores keep candidate order.
func (p *Pipeline) Rank(ctx context.Context, base *profile.Record, candidates []*profile.Record, limit int) []*Result {
	var results []*Result
	for _, cand := range candidates {
		if cand.ProfileURL != "" && cand.ProfileURL == base.ProfileURL {
			continue
		}
		results = append(results, p.score(ctx, base, cand))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (p *Pipeline) score(ctx context.Context, base, cand *profile.Record) *Result {
	body, err := p.complete(ctx, buildScorePrompt(base, cand), true)
	if err != nil {
		log.Printf("similarity: scoring call for %s failed: %v", cand.ProfileURL, err)
		return p.annotate(neutralResult(), cand)
	}
	return p.annotate(parseScoredResponse(body), cand)
}

func (p *Pipeline) annotate(res *Result, cand *profile.Record) *Result {
	res.ProfileURL = cand.ProfileURL
	res.Name = cand.Name
	return res
}

func (p *Pipeline) complete(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	start := time.Now()
	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
		Model: p.model,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   1024,
		Temperature: 0.2,
		JSONMode:    jsonMode,
	})
	if p.tracker != nil {
		p.tracker.Record("llm_complete", time.Since(start), map[string]string{
			"provider": p.provider.Name(),
		})
	}
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
