// Package session manages participant membership and round timing for
// one game: who is seated, how many consecutive reveal windows they
// have missed, and when a table is allowed to start or must drain.
package session

import "time"

// Config carries the timing and membership limits a table enforces.
// Zero-valued fields are replaced by their DefaultConfig equivalent by
// NewManager, so a caller only needs to override what it cares about.
type Config struct {
	CommitWindow     time.Duration
	RevealWindow     time.Duration
	ViewChangeWindow time.Duration

	MinParticipants int
	MaxParticipants int

	// MaxMissedReveals is how many consecutive reveal windows a peer may
	// miss before being auto-evicted.
	MaxMissedReveals int
}

// DefaultConfig matches the house defaults: 5s to commit, 5s to reveal,
// 10s to force a view change, 2-8 participants per table, auto-eviction
// after 3 consecutive missed reveals.
func DefaultConfig() Config {
	return Config{
		CommitWindow:     5 * time.Second,
		RevealWindow:     5 * time.Second,
		ViewChangeWindow: 10 * time.Second,
		MinParticipants:  2,
		MaxParticipants:  8,
		MaxMissedReveals: 3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CommitWindow == 0 {
		c.CommitWindow = d.CommitWindow
	}
	if c.RevealWindow == 0 {
		c.RevealWindow = d.RevealWindow
	}
	if c.ViewChangeWindow == 0 {
		c.ViewChangeWindow = d.ViewChangeWindow
	}
	if c.MinParticipants == 0 {
		c.MinParticipants = d.MinParticipants
	}
	if c.MaxParticipants == 0 {
		c.MaxParticipants = d.MaxParticipants
	}
	if c.MaxMissedReveals == 0 {
		c.MaxMissedReveals = d.MaxMissedReveals
	}
	return c
}
