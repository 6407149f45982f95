package domain

// Run kinds as they appear in feed events and logs.
const (
	RunKindFilter     = "filter"
	RunKindCategorize = "categorize"
)

// Notification event names emitted around pipeline runs.
const (
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"
)

// ScreenStats summarizes one screening pass over a raw document.
type ScreenStats struct {
	Total          int     `json:"total"`
	Kept           int     `json:"kept"`
	SportsRemoved  int     `json:"sports_removed"`
	InvalidRemoved int     `json:"invalid_removed"`
	RemovedPercent float64 `json:"removed_percent"`
}

// RunEvent is the feed payload describing one pipeline run.
type RunEvent struct {
	RunID     string       `json:"run_id"`
	Kind      string       `json:"kind"`
	Input     string       `json:"input"`
	Outputs   []string     `json:"outputs,omitempty"`
	Stats     *ScreenStats `json:"stats,omitempty"`
	Error     string       `json:"error,omitempty"`
	Timestamp string       `json:"timestamp"`
}
