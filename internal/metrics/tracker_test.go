package metrics

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	tr := NewTracker()
	tr.Record("slack_post_message", 100*time.Millisecond, nil)
	tr.Record("slack_post_message", 300*time.Millisecond, nil)
	tr.Record("llm_complete", 2*time.Second, nil)

	sum := tr.Summarize()
	if sum.TotalCalls != 3 {
		t.Errorf("expected 3 total calls, got %d", sum.TotalCalls)
	}

	post := sum.PerOperation["slack_post_message"]
	if post.Calls != 2 {
		t.Errorf("expected 2 calls, got %d", post.Calls)
	}
	if post.Avg != 200*time.Millisecond {
		t.Errorf("expected 200ms avg, got %v", post.Avg)
	}

	if sum.Slowest != "llm_complete" {
		t.Errorf("expected slowest llm_complete, got %q", sum.Slowest)
	}
	if sum.Fastest != "slack_post_message" {
		t.Errorf("expected fastest slack_post_message, got %q", sum.Fastest)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	tr := NewTracker()
	sum := tr.Summarize()
	if sum.TotalCalls != 0 {
		t.Errorf("expected 0 calls, got %d", sum.TotalCalls)
	}
	if sum.Slowest != "" || sum.Fastest != "" {
		t.Errorf("expected empty slowest/fastest, got %q/%q", sum.Slowest, sum.Fastest)
	}
}

func TestAnalyzeFlagsSlowAndHighVolume(t *testing.T) {
	tr := NewTracker()
	// Slow: avg over 1s.
	tr.Record("llm_complete", 3*time.Second, nil)
	// High volume: 11 fast calls.
	for i := 0; i < 11; i++ {
		tr.Record("slack_post_message", 50*time.Millisecond, nil)
	}

	recs := tr.Analyze()
	if len(recs) != 2 {
		t.Fatalf("expected 2 recommendations, got %d: %+v", len(recs), recs)
	}

	var slow, volume bool
	for _, r := range recs {
		if r.Operation == "llm_complete" && r.Issue == "Slow response time" {
			slow = true
		}
		if r.Operation == "slack_post_message" && r.Issue == "High call volume" {
			volume = true
		}
	}
	if !slow {
		t.Error("expected slow-response recommendation for llm_complete")
	}
	if !volume {
		t.Error("expected high-volume recommendation for slack_post_message")
	}
}

func TestAnalyzeQuietBelowThresholds(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 10; i++ {
		tr.Record("profile_fetch", 500*time.Millisecond, nil)
	}
	if recs := tr.Analyze(); len(recs) != 0 {
		t.Errorf("expected no recommendations, got %+v", recs)
	}
}

func TestDistributionFlagsSingleOutlier(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 19; i++ {
		tr.Record("X", 100*time.Millisecond, nil)
	}
	tr.Record("X", 5*time.Second, nil)

	d, ok := tr.Distribution("X")
	if !ok {
		t.Fatal("expected distribution for X")
	}
	if len(d.Outliers) != 1 {
		t.Fatalf("expected exactly 1 outlier, got %d (%v)", len(d.Outliers), d.Outliers)
	}
	if d.Outliers[0] != 5*time.Second {
		t.Errorf("expected 5s outlier, got %v", d.Outliers[0])
	}
	if d.SampleCount != 20 {
		t.Errorf("expected 20 samples, got %d", d.SampleCount)
	}
	if d.OutlierPct != 5 {
		t.Errorf("expected 5%% outliers, got %v", d.OutlierPct)
	}
}

func TestDistributionPercentiles(t *testing.T) {
	tr := NewTracker()
	for i := 1; i <= 100; i++ {
		tr.Record("Y", time.Duration(i)*time.Millisecond, nil)
	}

	d, ok := tr.Distribution("Y")
	if !ok {
		t.Fatal("expected distribution for Y")
	}
	if d.Min != time.Millisecond || d.Max != 100*time.Millisecond {
		t.Errorf("unexpected min/max: %v/%v", d.Min, d.Max)
	}
	// Linear interpolation over [1ms..100ms]: p50 lands halfway between
	// the 50th and 51st values.
	if d.P50 != 50*time.Millisecond+500*time.Microsecond {
		t.Errorf("unexpected p50: %v", d.P50)
	}
	if d.P99 < 99*time.Millisecond || d.P99 > 100*time.Millisecond {
		t.Errorf("unexpected p99: %v", d.P99)
	}
}

func TestDistributionUnknownOperation(t *testing.T) {
	tr := NewTracker()
	if _, ok := tr.Distribution("missing"); ok {
		t.Error("expected no distribution for unknown operation")
	}
}

func TestTimeRecordsAndPassesError(t *testing.T) {
	tr := NewTracker()
	wantErr := errors.New("boom")
	err := tr.Time("op", nil, func() error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped-through error, got %v", err)
	}
	if sum := tr.Summarize(); sum.PerOperation["op"].Calls != 1 {
		t.Errorf("expected 1 recorded call, got %d", sum.PerOperation["op"].Calls)
	}
}

func TestReportAndFileSink(t *testing.T) {
	tr := NewTracker()
	tr.Record("llm_complete", 2*time.Second, nil)
	tr.Record("slack_post_message", 100*time.Millisecond, map[string]string{"channel": "D123"})

	rep := tr.Report()
	if rep.ID == "" {
		t.Error("expected report ID")
	}
	if rep.Summary.TotalCalls != 2 {
		t.Errorf("expected 2 calls in summary, got %d", rep.Summary.TotalCalls)
	}
	if rep.Summary.SlowestOperation != "llm_complete" {
		t.Errorf("expected slowest llm_complete, got %q", rep.Summary.SlowestOperation)
	}
	if len(rep.Recommendations) != 1 {
		t.Errorf("expected 1 recommendation, got %d", len(rep.Recommendations))
	}

	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatal(err)
	}
	path, err := sink.WriteReport(rep)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("report written outside sink dir: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var loaded Report
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("report file is not valid JSON: %v", err)
	}
	if loaded.Summary.TotalCalls != 2 {
		t.Errorf("round-tripped summary lost calls: %d", loaded.Summary.TotalCalls)
	}
}
