// Package store declares the persistence contract an election.Service
// drives during intake and counting, and the election configuration
// shape that flows through it.
package store

import (
	"context"
	"fmt"
)

// GroupConfig is one group's name and target seat count, as submitted
// at election creation time.
type GroupConfig struct {
	Name  string `json:"name"`
	Seats int    `json:"seats"`
}

// CandidateConfig is one candidate's code, display name, and owning
// group, as submitted at election creation time.
type CandidateConfig struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// ElectionConfig is the immutable configuration of one election,
// persisted once at Create and read back at Stop to build the
// counting engine.
type ElectionConfig struct {
	Title            string            `json:"title"`
	UseGroups        bool              `json:"use_groups"`
	ReactivationMode bool              `json:"reactivation_mode"`
	Groups           []GroupConfig     `json:"groups"`
	Candidates       []CandidateConfig `json:"candidates"`
}

// Backend is the storage contract for election configuration,
// in-flight ballots, and final results. election.Service is configured
// with two Backend instances: a fast one for ballot intake and a long
// one for configuration and results, mirroring how the teacher splits
// message-bus-backed and database-backed storage across two concerns.
type Backend interface {
	fmt.Stringer

	CreateElection(ctx context.Context, cfg ElectionConfig) (int, error)
	Config(ctx context.Context, electionID int) (ElectionConfig, error)

	StoreBallot(ctx context.Context, electionID int, voterID string, ballot []byte) error
	Ballots(ctx context.Context, electionID int) (map[string][]byte, error)
	BallotCount(ctx context.Context, electionID int) (int, error)

	StoreResult(ctx context.Context, electionID int, result []byte) error
	Result(ctx context.Context, electionID int) ([]byte, error)

	Clear(ctx context.Context, electionID int) error
}
