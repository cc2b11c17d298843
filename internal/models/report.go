package models

import "time"

// RoundReport aggregates outcomes of one orchestrator pass over all categories.
type RoundReport struct {
	Round       int
	Attempted   int
	Resolved    int
	Fallback    int
	RowsWritten int64
}

// RunReport is the operator-facing summary of a whole pipeline run.
type RunReport struct {
	RunID       string
	Rounds      int
	Attempted   int
	Resolved    int
	Fallback    int
	RowsWritten int64
	Remaining   int
	Duration    time.Duration
}

// Add folds a round report into the run totals.
func (r *RunReport) Add(round *RoundReport) {
	r.Rounds++
	r.Attempted += round.Attempted
	r.Resolved += round.Resolved
	r.Fallback += round.Fallback
	r.RowsWritten += round.RowsWritten
}
