package service

import "time"

// Config carries the engine knobs. Passed explicitly to every service so
// parallel instances never share mutable globals.
type Config struct {
	ReconsolidationWindow     time.Duration
	RecurrenceThreshold       int
	RecurrenceWindow          time.Duration
	SignificanceThreshold     float64
	ConfidenceFloor           float64
	PauseTimeout              time.Duration
	MismatchRetryLimit        int
	SuccessRateTarget         float64
	MinVerificationEncounters int
}

func DefaultConfig() Config {
	return Config{
		ReconsolidationWindow:     4 * time.Hour,
		RecurrenceThreshold:       3,
		RecurrenceWindow:          7 * 24 * time.Hour,
		SignificanceThreshold:     0.5,
		ConfidenceFloor:           0.2,
		PauseTimeout:              24 * time.Hour,
		MismatchRetryLimit:        3,
		SuccessRateTarget:         0.70,
		MinVerificationEncounters: 3,
	}
}
