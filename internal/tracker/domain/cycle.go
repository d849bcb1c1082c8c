package domain

import "time"

// CycleSummary describes one completed check cycle
type CycleSummary struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Total       int       `json:"total"`
	Checked     int       `json:"checked"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Alerts      int       `json:"alerts"`
	Aborted     bool      `json:"aborted"`
}

// Timestamp is the completion time of the cycle
func (s CycleSummary) Timestamp() time.Time {
	return s.CompletedAt
}

// Degraded reports a cycle where products existed but none could be checked
func (s CycleSummary) Degraded() bool {
	return s.Total > 0 && s.Checked == 0
}

// Duration of the cycle
func (s CycleSummary) Duration() time.Duration {
	return s.CompletedAt.Sub(s.StartedAt)
}
