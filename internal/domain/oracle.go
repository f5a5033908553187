package domain

import "time"

// TrackedOracle is an on-chain weather oracle the poller keeps settling.
// Records are appended once and never mutated.
type TrackedOracle struct {
	ID                   string    `json:"id"`
	PredictionRegistryID string    `json:"predict_id"`
	CityName             string    `json:"city_name"`
	Latitude             float64   `json:"latitude"`
	Longitude            float64   `json:"longitude"`
	TargetTimestamp      int64     `json:"target_time"` // ms since epoch
	TargetTemperature    float64   `json:"target_temp"` // Celsius
	CreatedAt            time.Time `json:"created_at"`
}

// Ended reports whether the deadline has passed at now. Equality is not ended.
func (o TrackedOracle) Ended(now time.Time) bool {
	return now.UnixMilli() > o.TargetTimestamp
}

// SettlementState is the poller's bookkeeping for one oracle.
type SettlementState struct {
	OracleID            string     `json:"oracle_id"`
	Attempts            int        `json:"attempts"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastTemperature     *float64   `json:"last_temperature,omitempty"`
	LastEnded           bool       `json:"last_ended"`
	LastError           string     `json:"last_error,omitempty"`
	LastDigest          string     `json:"last_digest,omitempty"`
	LastAttemptAt       *time.Time `json:"last_attempt_at,omitempty"`
	SettledAt           *time.Time `json:"settled_at,omitempty"`
	DeadLettered        bool       `json:"dead_lettered"`
}

// Settled reports whether an ended=true update has been confirmed.
func (s SettlementState) Settled() bool {
	return s.SettledAt != nil
}
