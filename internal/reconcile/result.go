package reconcile

import "time"

// PhaseResult summarizes one phase's outcome within a cycle.
type PhaseResult struct {
	Name      string
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// CycleResult summarizes a full reconciliation cycle.
type CycleResult struct {
	BatchID  string
	StartedAt time.Time
	Duration time.Duration
	Phases   []PhaseResult
	Err      error
}

// TotalProcessed sums Processed across every phase.
func (r CycleResult) TotalProcessed() int {
	var total int
	for _, p := range r.Phases {
		total += p.Processed
	}
	return total
}

// TotalFailed sums Failed across every phase.
func (r CycleResult) TotalFailed() int {
	var total int
	for _, p := range r.Phases {
		total += p.Failed
	}
	return total
}
