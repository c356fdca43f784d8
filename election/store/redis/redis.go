// Package redis implements store.Backend as a fast ballot-intake
// backend over Redis, using github.com/gomodule/redigo. Configuration
// and results are out of scope for this backend — it is meant to be
// paired with a long-term Backend (e.g. election/store/postgres) that
// owns those; calls to CreateElection/Config/StoreResult/Result return
// errors directing the caller to the long backend instead.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civiccount/stv-tabulator/election/store"
	"github.com/gomodule/redigo/redis"
)

// ErrUnsupported is returned by the configuration/result methods this
// backend deliberately does not implement.
var ErrUnsupported = errors.New("redis backend only stores ballots; pair it with a long-term backend")

// Backend is a store.Backend backed by a redigo connection pool.
type Backend struct {
	pool *redis.Pool
}

// NewPool builds a redigo connection pool for a redis server at addr
// (host:port).
func NewPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     10,
		IdleTimeout: 240 * time.Second,
		Dial:        func() (redis.Conn, error) { return redis.Dial("tcp", addr) },
	}
}

// New wraps an existing redigo pool.
func New(pool *redis.Pool) *Backend {
	return &Backend{pool: pool}
}

func (b *Backend) String() string {
	return "redis"
}

func ballotsKey(electionID int) string {
	return fmt.Sprintf("election:%d:ballots", electionID)
}

// CreateElection is unsupported by this backend.
func (b *Backend) CreateElection(ctx context.Context, cfg store.ElectionConfig) (int, error) {
	return 0, ErrUnsupported
}

// Config is unsupported by this backend.
func (b *Backend) Config(ctx context.Context, electionID int) (store.ElectionConfig, error) {
	return store.ElectionConfig{}, ErrUnsupported
}

// StoreBallot writes voterID's ballot into the election's ballots hash,
// overwriting any ballot previously stored for that voter.
func (b *Backend) StoreBallot(ctx context.Context, electionID int, voterID string, ballot []byte) error {
	conn, err := b.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("getting redis connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("HSET", ballotsKey(electionID), voterID, ballot); err != nil {
		return fmt.Errorf("HSET ballot: %w", err)
	}
	return nil
}

// Ballots returns every stored ballot for electionID, keyed by voter id.
func (b *Backend) Ballots(ctx context.Context, electionID int) (map[string][]byte, error) {
	conn, err := b.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting redis connection: %w", err)
	}
	defer conn.Close()

	raw, err := redis.StringMap(conn.Do("HGETALL", ballotsKey(electionID)))
	if err != nil {
		return nil, fmt.Errorf("HGETALL ballots: %w", err)
	}

	out := make(map[string][]byte, len(raw))
	for voterID, ballot := range raw {
		out[voterID] = []byte(ballot)
	}
	return out, nil
}

// BallotCount returns the number of ballots stored for electionID.
func (b *Backend) BallotCount(ctx context.Context, electionID int) (int, error) {
	conn, err := b.pool.GetContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting redis connection: %w", err)
	}
	defer conn.Close()

	n, err := redis.Int(conn.Do("HLEN", ballotsKey(electionID)))
	if err != nil {
		return 0, fmt.Errorf("HLEN ballots: %w", err)
	}
	return n, nil
}

// StoreResult is unsupported by this backend.
func (b *Backend) StoreResult(ctx context.Context, electionID int, result []byte) error {
	return ErrUnsupported
}

// Result is unsupported by this backend.
func (b *Backend) Result(ctx context.Context, electionID int) ([]byte, error) {
	return nil, ErrUnsupported
}

// Clear deletes the election's ballots hash.
func (b *Backend) Clear(ctx context.Context, electionID int) error {
	conn, err := b.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("getting redis connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("DEL", ballotsKey(electionID)); err != nil {
		return fmt.Errorf("DEL ballots: %w", err)
	}
	return nil
}
