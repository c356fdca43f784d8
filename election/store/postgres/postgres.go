// Package postgres implements store.Backend against a Postgres
// database via pgx, used as the long-term backend for election
// configuration and results.
package postgres

import (
	"context"
	_ "embed" // needed for schema embedding
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/civiccount/stv-tabulator/election/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Backend holds the state of the backend. Must be initialized with New.
type Backend struct {
	pool *pgxpool.Pool
}

// New creates a new connection pool against url (a postgres:// DSN).
func New(ctx context.Context, url string) (*Backend, error) {
	conf, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid connection url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return &Backend{pool: pool}, nil
}

func (b *Backend) String() string {
	return "postgres"
}

// Wait blocks until a connection to postgres can be established.
func (b *Backend) Wait(ctx context.Context, log func(format string, a ...any)) {
	for ctx.Err() == nil {
		if err := b.pool.Ping(ctx); err == nil {
			return
		} else if log != nil {
			log("Waiting for postgres: %v", err)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// Migrate creates the database schema.
func (b *Backend) Migrate(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Close closes all connections. It blocks until all connections close.
func (b *Backend) Close() {
	b.pool.Close()
}

// CreateElection inserts a new election row and returns its id.
func (b *Backend) CreateElection(ctx context.Context, cfg store.ElectionConfig) (int, error) {
	groups, err := json.Marshal(cfg.Groups)
	if err != nil {
		return 0, fmt.Errorf("encoding groups: %w", err)
	}
	candidates, err := json.Marshal(cfg.Candidates)
	if err != nil {
		return 0, fmt.Errorf("encoding candidates: %w", err)
	}

	sql := `
	INSERT INTO election (title, use_groups, reactivation_mode, groups, candidates)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id;
	`
	var id int
	if err := b.pool.QueryRow(ctx, sql, cfg.Title, cfg.UseGroups, cfg.ReactivationMode, groups, candidates).Scan(&id); err != nil {
		return 0, fmt.Errorf("inserting election: %w", err)
	}
	return id, nil
}

// Config fetches the configuration stored for electionID.
func (b *Backend) Config(ctx context.Context, electionID int) (store.ElectionConfig, error) {
	sql := `
	SELECT title, use_groups, reactivation_mode, groups, candidates
	FROM election WHERE id = $1;
	`
	var cfg store.ElectionConfig
	var groups, candidates []byte
	err := b.pool.QueryRow(ctx, sql, electionID).Scan(&cfg.Title, &cfg.UseGroups, &cfg.ReactivationMode, &groups, &candidates)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ElectionConfig{}, doesNotExistError{fmt.Errorf("election %d does not exist", electionID)}
		}
		return store.ElectionConfig{}, fmt.Errorf("fetching election: %w", err)
	}
	if err := json.Unmarshal(groups, &cfg.Groups); err != nil {
		return store.ElectionConfig{}, fmt.Errorf("decoding groups: %w", err)
	}
	if err := json.Unmarshal(candidates, &cfg.Candidates); err != nil {
		return store.ElectionConfig{}, fmt.Errorf("decoding candidates: %w", err)
	}
	return cfg, nil
}

// StoreBallot upserts voterID's ballot for electionID inside a single
// transaction, refusing writes once a result has already been stored.
func (b *Backend) StoreBallot(ctx context.Context, electionID int, voterID string, ballot []byte) error {
	return pgx.BeginTxFunc(ctx, b.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, func(tx pgx.Tx) error {
		var resultSet bool
		sql := "SELECT result IS NOT NULL FROM election WHERE id = $1;"
		if err := tx.QueryRow(ctx, sql, electionID).Scan(&resultSet); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return doesNotExistError{fmt.Errorf("election %d does not exist", electionID)}
			}
			return fmt.Errorf("fetching election state: %w", err)
		}
		if resultSet {
			return stoppedError{fmt.Errorf("election %d is already stopped", electionID)}
		}

		sql = `
		INSERT INTO ballot (election_id, voter_id, ballot) VALUES ($1, $2, $3)
		ON CONFLICT (election_id, voter_id) DO UPDATE SET ballot = EXCLUDED.ballot;
		`
		if _, err := tx.Exec(ctx, sql, electionID, voterID, ballot); err != nil {
			return fmt.Errorf("writing ballot: %w", err)
		}
		return nil
	})
}

// Ballots returns every stored ballot for electionID, keyed by voter id.
func (b *Backend) Ballots(ctx context.Context, electionID int) (map[string][]byte, error) {
	sql := "SELECT voter_id, ballot FROM ballot WHERE election_id = $1;"
	rows, err := b.pool.Query(ctx, sql, electionID)
	if err != nil {
		return nil, fmt.Errorf("fetching ballots: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var voterID string
		var ballot []byte
		if err := rows.Scan(&voterID, &ballot); err != nil {
			return nil, fmt.Errorf("scanning ballot row: %w", err)
		}
		out[voterID] = ballot
	}
	return out, rows.Err()
}

// BallotCount returns the number of ballots stored for electionID.
func (b *Backend) BallotCount(ctx context.Context, electionID int) (int, error) {
	sql := "SELECT count(*) FROM ballot WHERE election_id = $1;"
	var n int
	if err := b.pool.QueryRow(ctx, sql, electionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting ballots: %w", err)
	}
	return n, nil
}

// StoreResult persists the final result blob for electionID.
func (b *Backend) StoreResult(ctx context.Context, electionID int, result []byte) error {
	sql := "UPDATE election SET result = $1 WHERE id = $2;"
	tag, err := b.pool.Exec(ctx, sql, result, electionID)
	if err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return doesNotExistError{fmt.Errorf("election %d does not exist", electionID)}
	}
	return nil
}

// Result returns the previously stored result for electionID.
func (b *Backend) Result(ctx context.Context, electionID int) ([]byte, error) {
	sql := "SELECT result FROM election WHERE id = $1;"
	var result []byte
	if err := b.pool.QueryRow(ctx, sql, electionID).Scan(&result); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, doesNotExistError{fmt.Errorf("election %d does not exist", electionID)}
		}
		return nil, fmt.Errorf("fetching result: %w", err)
	}
	if result == nil {
		return nil, doesNotExistError{fmt.Errorf("election %d has no result yet", electionID)}
	}
	return result, nil
}

// Clear removes all data about electionID from the database.
func (b *Backend) Clear(ctx context.Context, electionID int) error {
	sql := "DELETE FROM election WHERE id = $1;"
	if _, err := b.pool.Exec(ctx, sql, electionID); err != nil {
		return fmt.Errorf("deleting election %d: %w", electionID, err)
	}
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
