package models

import "time"

const SnapshotVersion = 2

// Snapshot is the on-disk persistence envelope. Sessions is empty when the
// sessions live in an external backend; the rate log is always kept here.
type Snapshot struct {
	Version  int                 `json:"version"`
	Sessions map[string]*Session `json:"sessions,omitempty"`
	RateLog  []time.Time         `json:"rate_log,omitempty"`
}
