package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Thresholds used by Analyze to flag problematic operations.
const (
	slowAvgThreshold    = time.Second
	highVolumeThreshold = 10
)

// Sample is a single recorded call duration for a named external operation.
// Samples are append-only; the full history stays replayable.
type Sample struct {
	Operation string
	Timestamp time.Time
	Duration  time.Duration
	Metadata  map[string]string
}

// Tracker accumulates call-duration samples and derives statistics from them.
// All derivations are pure functions over the accumulated sample list.
type Tracker struct {
	mu      sync.Mutex
	samples []Sample
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record appends a sample for the given operation. Metadata is optional and
// may be nil.
func (t *Tracker) Record(operation string, duration time.Duration, metadata map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = append(t.samples, Sample{
		Operation: operation,
		Timestamp: time.Now(),
		Duration:  duration,
		Metadata:  metadata,
	})
}

// Time runs fn, records its wall-clock duration under operation, and returns
// fn's error unchanged.
func (t *Tracker) Time(operation string, metadata map[string]string, fn func() error) error {
	start := time.Now()
	err := fn()
	t.Record(operation, time.Since(start), metadata)
	return err
}

// Samples returns a copy of the accumulated samples for the given operation.
func (t *Tracker) Samples(operation string) []Sample {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Sample
	for _, s := range t.samples {
		if s.Operation == operation {
			out = append(out, s)
		}
	}
	return out
}

// OperationStats summarises all samples for one operation.
type OperationStats struct {
	Calls int
	Total time.Duration
	Avg   time.Duration
}

// Summary is a point-in-time snapshot across all operations.
type Summary struct {
	PerOperation  map[string]OperationStats
	TotalCalls    int
	TotalDuration time.Duration
	Slowest       string // operation with the highest average duration
	Fastest       string // operation with the lowest average duration
}

// Summarize computes per-operation counts, totals and averages plus the
// slowest/fastest operations by average duration.
func (t *Tracker) Summarize() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	per := make(map[string]OperationStats)
	for _, s := range t.samples {
		st := per[s.Operation]
		st.Calls++
		st.Total += s.Duration
		per[s.Operation] = st
	}

	sum := Summary{PerOperation: per}
	slowest, fastest := time.Duration(-1), time.Duration(math.MaxInt64)
	for op, st := range per {
		st.Avg = st.Total / time.Duration(st.Calls)
		per[op] = st
		sum.TotalCalls += st.Calls
		sum.TotalDuration += st.Total
		if st.Avg > slowest {
			slowest, sum.Slowest = st.Avg, op
		}
		if st.Avg < fastest {
			fastest, sum.Fastest = st.Avg, op
		}
	}
	return sum
}

// Recommendation flags an operation with a canned remediation.
type Recommendation struct {
	Operation      string `json:"operation"`
	Issue          string `json:"issue"`
	Recommendation string `json:"recommendation"`
}

// Analyze flags operations averaging over one second as slow and operations
// with more than ten calls as high volume.
func (t *Tracker) Analyze() []Recommendation {
	sum := t.Summarize()

	ops := make([]string, 0, len(sum.PerOperation))
	for op := range sum.PerOperation {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	var recs []Recommendation
	for _, op := range ops {
		if sum.PerOperation[op].Avg > slowAvgThreshold {
			recs = append(recs, Recommendation{
				Operation:      op,
				Issue:          "Slow response time",
				Recommendation: "Consider implementing caching or optimizing API usage",
			})
		}
	}
	for _, op := range ops {
		if sum.PerOperation[op].Calls > highVolumeThreshold {
			recs = append(recs, Recommendation{
				Operation:      op,
				Issue:          "High call volume",
				Recommendation: "Consider batching requests or implementing rate limiting",
			})
		}
	}
	return recs
}

// Distribution holds percentile statistics and outliers for one operation.
type Distribution struct {
	Min, Max                     time.Duration
	P25, P50, P75, P90, P95, P99 time.Duration
	Outliers                     []time.Duration
	OutlierPct                   float64
	SampleCount                  int
}

// Distribution computes percentiles for the operation's samples and flags
// outliers using the 1.5×IQR rule. The second return value is false when the
// operation has no samples.
func (t *Tracker) Distribution(operation string) (Distribution, bool) {
	samples := t.Samples(operation)
	if len(samples) == 0 {
		return Distribution{}, false
	}

	durs := make([]time.Duration, len(samples))
	for i, s := range samples {
		durs[i] = s.Duration
	}
	sort.Slice(durs, func(i, j int) bool { return durs[i] < durs[j] })

	d := Distribution{
		Min:         durs[0],
		Max:         durs[len(durs)-1],
		P25:         percentile(durs, 25),
		P50:         percentile(durs, 50),
		P75:         percentile(durs, 75),
		P90:         percentile(durs, 90),
		P95:         percentile(durs, 95),
		P99:         percentile(durs, 99),
		SampleCount: len(durs),
	}

	iqr := d.P75 - d.P25
	lower := d.P25 - time.Duration(1.5*float64(iqr))
	upper := d.P75 + time.Duration(1.5*float64(iqr))
	for _, v := range durs {
		if v < lower || v > upper {
			d.Outliers = append(d.Outliers, v)
		}
	}
	d.OutlierPct = float64(len(d.Outliers)) / float64(len(durs)) * 100
	return d, true
}

// percentile interpolates linearly between the two nearest ranks of a sorted
// slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + time.Duration(frac*float64(sorted[hi]-sorted[lo]))
}
