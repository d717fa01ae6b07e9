package engine

import "go.uber.org/atomic"

// Stats counts engine activity since process start.
type Stats struct {
	MultisigsCreated   atomic.Uint64
	MultisigsVerified  atomic.Uint64
	ProposalsCreated   atomic.Uint64
	VotesRecorded      atomic.Uint64
	ConflictsRejected  atomic.Uint64
	ProposalsCancelled atomic.Uint64
	ProposalsVerified  atomic.Uint64
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"multisigs_created":   s.MultisigsCreated.Load(),
		"multisigs_verified":  s.MultisigsVerified.Load(),
		"proposals_created":   s.ProposalsCreated.Load(),
		"votes_recorded":      s.VotesRecorded.Load(),
		"conflicts_rejected":  s.ConflictsRejected.Load(),
		"proposals_cancelled": s.ProposalsCancelled.Load(),
		"proposals_verified":  s.ProposalsVerified.Load(),
	}
}
