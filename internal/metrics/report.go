package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ReportOperation is the serialised per-operation view inside a report.
type ReportOperation struct {
	Calls        int     `json:"calls"`
	AvgSeconds   float64 `json:"avg_duration_seconds"`
	TotalSeconds float64 `json:"total_duration_seconds"`
}

// ReportSummary is the serialised roll-up across all operations.
type ReportSummary struct {
	TotalCalls           int     `json:"total_calls"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
	SlowestOperation     string  `json:"slowest_operation"`
	FastestOperation     string  `json:"fastest_operation"`
}

// Report is an immutable snapshot of tracker state, suitable for persisting
// and for cross-run comparison.
type Report struct {
	ID                string                     `json:"id"`
	GeneratedAt       time.Time                  `json:"generated_at"`
	PerOperationStats map[string]ReportOperation `json:"per_operation_stats"`
	Summary           ReportSummary              `json:"summary"`
	Recommendations   []Recommendation           `json:"recommendations"`
}

// Report builds a snapshot of the tracker's current state.
func (t *Tracker) Report() *Report {
	sum := t.Summarize()

	per := make(map[string]ReportOperation, len(sum.PerOperation))
	for op, st := range sum.PerOperation {
		per[op] = ReportOperation{
			Calls:        st.Calls,
			AvgSeconds:   st.Avg.Seconds(),
			TotalSeconds: st.Total.Seconds(),
		}
	}

	return &Report{
		ID:                uuid.NewString(),
		GeneratedAt:       time.Now().UTC(),
		PerOperationStats: per,
		Summary: ReportSummary{
			TotalCalls:           sum.TotalCalls,
			TotalDurationSeconds: sum.TotalDuration.Seconds(),
			SlowestOperation:     sum.Slowest,
			FastestOperation:     sum.Fastest,
		},
		Recommendations: t.Analyze(),
	}
}

// FileSink persists reports as JSON files in a directory.
type FileSink struct {
	dir string
}

// NewFileSink creates the report directory if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// WriteReport writes the report as indented JSON and returns the file path.
func (s *FileSink) WriteReport(r *Report) (string, error) {
	name := fmt.Sprintf("api_performance_%s.json", r.GeneratedAt.Format("20060102_150405"))
	path := filepath.Join(s.dir, name)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshalling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing report to %s: %w", path, err)
	}
	return path, nil
}
