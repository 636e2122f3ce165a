package reports

import (
	"sort"

	"github.com/profilescout/profilescout/internal/metrics"
)

// OperationDelta describes how one operation's performance moved between two
// reports.
type OperationDelta struct {
	Operation     string
	BaseAvg       float64 // seconds, zero when the operation is new
	CurrentAvg    float64 // seconds, zero when the operation disappeared
	AvgChangePct  float64 // positive means slower
	BaseCalls     int
	CurrentCalls  int
	New           bool
	Disappeared   bool
}

// Diff compares two reports operation by operation, sorted by operation name.
func Diff(base, current *metrics.Report) []OperationDelta {
	ops := make(map[string]struct{})
	for op := range base.PerOperationStats {
		ops[op] = struct{}{}
	}
	for op := range current.PerOperationStats {
		ops[op] = struct{}{}
	}

	names := make([]string, 0, len(ops))
	for op := range ops {
		names = append(names, op)
	}
	sort.Strings(names)

	var deltas []OperationDelta
	for _, op := range names {
		baseStats, inBase := base.PerOperationStats[op]
		curStats, inCurrent := current.PerOperationStats[op]

		d := OperationDelta{
			Operation:    op,
			BaseAvg:      baseStats.AvgSeconds,
			CurrentAvg:   curStats.AvgSeconds,
			BaseCalls:    baseStats.Calls,
			CurrentCalls: curStats.Calls,
			New:          !inBase,
			Disappeared:  !inCurrent,
		}
		if inBase && inCurrent && baseStats.AvgSeconds > 0 {
			d.AvgChangePct = (curStats.AvgSeconds - baseStats.AvgSeconds) / baseStats.AvgSeconds * 100
		}
		deltas = append(deltas, d)
	}
	return deltas
}
