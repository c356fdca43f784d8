// Package memory implements the store.Backend interface entirely in
// process memory. It backs tests and cmd/stv-server's "memory" backend
// option.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/civiccount/stv-tabulator/election/store"
)

// Backend is a store.Backend that holds all data in memory.
type Backend struct {
	mu        sync.Mutex
	nextID    int
	configs   map[int]store.ElectionConfig
	ballots   map[int]map[string][]byte
	results   map[int][]byte
	hasResult map[int]bool
}

// New initializes a new memory.Backend.
func New() *Backend {
	return &Backend{
		configs:   make(map[int]store.ElectionConfig),
		ballots:   make(map[int]map[string][]byte),
		results:   make(map[int][]byte),
		hasResult: make(map[int]bool),
	}
}

func (b *Backend) String() string {
	return "memory"
}

// CreateElection stores cfg under a new election id.
func (b *Backend) CreateElection(ctx context.Context, cfg store.ElectionConfig) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.configs[id] = cfg
	b.ballots[id] = make(map[string][]byte)
	return id, nil
}

// Config returns the configuration stored for electionID.
func (b *Backend) Config(ctx context.Context, electionID int) (store.ElectionConfig, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cfg, ok := b.configs[electionID]
	if !ok {
		return store.ElectionConfig{}, doesNotExistError{fmt.Errorf("election %d does not exist", electionID)}
	}
	return cfg, nil
}

// StoreBallot records one voter's ballot, overwriting any ballot
// previously stored for the same voter id.
func (b *Backend) StoreBallot(ctx context.Context, electionID int, voterID string, ballot []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.configs[electionID]; !ok {
		return doesNotExistError{fmt.Errorf("election %d does not exist", electionID)}
	}
	if b.hasResult[electionID] {
		return stoppedError{fmt.Errorf("election %d is already stopped", electionID)}
	}

	if b.ballots[electionID] == nil {
		b.ballots[electionID] = make(map[string][]byte)
	}
	b.ballots[electionID][voterID] = ballot
	return nil
}

// Ballots returns every stored ballot for electionID, keyed by voter id.
func (b *Backend) Ballots(ctx context.Context, electionID int) (map[string][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string][]byte, len(b.ballots[electionID]))
	for voterID, ballot := range b.ballots[electionID] {
		out[voterID] = ballot
	}
	return out, nil
}

// BallotCount returns the number of ballots stored for electionID.
func (b *Backend) BallotCount(ctx context.Context, electionID int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.ballots[electionID]), nil
}

// StoreResult persists the final result blob for electionID.
func (b *Backend) StoreResult(ctx context.Context, electionID int, result []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.results[electionID] = result
	b.hasResult[electionID] = true
	return nil
}

// Result returns the previously stored result for electionID.
func (b *Backend) Result(ctx context.Context, electionID int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.hasResult[electionID] {
		return nil, doesNotExistError{fmt.Errorf("election %d has no result yet", electionID)}
	}
	return b.results[electionID], nil
}

// Clear removes all data for electionID.
func (b *Backend) Clear(ctx context.Context, electionID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.configs, electionID)
	delete(b.ballots, electionID)
	delete(b.results, electionID)
	delete(b.hasResult, electionID)
	return nil
}

type doesNotExistError struct {
	error
}

func (doesNotExistError) DoesNotExist() {}

type stoppedError struct {
	error
}

func (stoppedError) Stopped() {}
