package models

import "time"

// AttemptWindowCounts is the raw per-window aggregation a repository returns;
// the metrics service derives rates from it.
type AttemptWindowCounts struct {
	Total              int64
	ByInitialStatus    map[string]int64
	ConfirmedCorrect   int64
	ConfirmedIncorrect int64
}

// MetricsReport is the time-windowed ledger aggregation for one scope.
// Rates are defined only over attempts that received feedback; they are nil
// ("not applicable") when no feedback exists in the window, never zero.
type MetricsReport struct {
	Scope              string           `json:"scope"`
	WindowStart        *time.Time       `json:"window_start,omitempty"`
	Total              int64            `json:"total"`
	ByInitialStatus    map[string]int64 `json:"by_initial_status"`
	ConfirmedCorrect   int64            `json:"confirmed_correct"`
	ConfirmedIncorrect int64            `json:"confirmed_incorrect"`
	TruePositiveRate   *float64         `json:"true_positive_rate"`
	FalsePositiveRate  *float64         `json:"false_positive_rate"`
}
