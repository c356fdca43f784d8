// Package election supplements spec.md with the collaborator role its
// §6 describes but leaves external: ballot intake ahead of a count,
// persistence of configuration and results, and driving the stv/progress
// core to build a result. Service is the single entry point; it never
// mutates a ballot once accepted and never guarantees anything the core
// itself does not (spec.md's Non-goals bind here too).
package election

import (
	"context"
	"crypto/cipher"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/civiccount/stv-tabulator/election/store"
	"github.com/civiccount/stv-tabulator/stv"
	"github.com/civiccount/stv-tabulator/stv/progress"
)

// WarnFunc receives non-fatal setup warnings, in the same Printf-style
// shape as stv.WarnFunc.
type WarnFunc func(format string, a ...any)

// Service drives elections end to end: creation, ballot intake, and
// counting. It holds no state of its own beyond its two backends — fast
// for in-flight ballots, long for configuration and results — so a
// Service value can be shared across goroutines.
type Service struct {
	fast store.Backend
	long store.Backend

	// secret, when non-nil, seals ballot bodies at rest in fast. Voter
	// ids are never sealed.
	secret cipher.AEAD

	// MaxBallots caps how many ballots an election accepts; 0 means
	// unlimited. Restored from the reference cloud function's
	// VOTES_LIMIT environment knob.
	MaxBallots int

	Warn WarnFunc
}

// New builds a Service. fast backs ballot intake (e.g. election/store/redis
// or election/store/memory); long backs configuration and results (e.g.
// election/store/postgres or election/store/memory). The same backend
// value may be used for both.
func New(fast, long store.Backend) *Service {
	return &Service{fast: fast, long: long}
}

// WithSecret returns a copy of s that seals ballot bodies with aead.
func (s *Service) WithSecret(aead cipher.AEAD) *Service {
	clone := *s
	clone.secret = aead
	return &clone
}

type createInput struct {
	Title            string                  `json:"title"`
	UseGroups        bool                    `json:"use_groups"`
	ReactivationMode bool                    `json:"reactivation_mode"`
	Groups           []store.GroupConfig     `json:"groups"`
	Candidates       []store.CandidateConfig `json:"candidates"`
}

// Create parses an election configuration from r and persists it,
// returning the new election's id. Mirrors the teacher's validate →
// persist → return-id poll-creation shape.
func (s *Service) Create(ctx context.Context, r io.Reader) (int, error) {
	var in createInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return 0, validationf("decoding election config: %v", err)
	}
	if len(in.Groups) == 0 {
		return 0, validationf("election must declare at least one group")
	}
	if len(in.Candidates) == 0 {
		return 0, validationf("election must declare at least one candidate")
	}

	cfg := store.ElectionConfig{
		Title:            in.Title,
		UseGroups:        in.UseGroups,
		ReactivationMode: in.ReactivationMode,
		Groups:           in.Groups,
		Candidates:       in.Candidates,
	}

	id, err := s.long.CreateElection(ctx, cfg)
	if err != nil {
		return 0, fmt.Errorf("creating election: %w", err)
	}
	return id, nil
}

// candidateSet loads the known candidate codes for electionID, to
// filter incoming ballots the same way stv.Engine.AddVoter would.
func (s *Service) candidateSet(ctx context.Context, electionID int) (map[string]bool, error) {
	cfg, err := s.long.Config(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("fetching election config: %w", err)
	}
	known := make(map[string]bool, len(cfg.Candidates))
	for _, c := range cfg.Candidates {
		known[c.Code] = true
	}
	return known, nil
}

// SubmitBallot accepts a ranked ballot (a JSON array of candidate
// codes) for voterID, dropping unknown or duplicate codes with a
// warning rather than rejecting the ballot outright — the same
// tolerance spec.md §4.A describes for the core's own add_voter.
// Resubmission by the same voter id overwrites their earlier ballot.
func (s *Service) SubmitBallot(ctx context.Context, electionID int, voterID string, r io.Reader) error {
	if voterID == "" {
		return validationf("voter id must not be empty")
	}

	if s.MaxBallots > 0 {
		n, err := s.fast.BallotCount(ctx, electionID)
		if err != nil {
			return fmt.Errorf("counting ballots: %w", err)
		}
		if n >= s.MaxBallots {
			return tooManyBallotsf("election %d has reached its limit of %d ballots", electionID, s.MaxBallots)
		}
	}

	var ballot []string
	if err := json.NewDecoder(r).Decode(&ballot); err != nil {
		return validationf("decoding ballot: %v", err)
	}

	known, err := s.candidateSet(ctx, electionID)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(ballot))
	filtered := make([]string, 0, len(ballot))
	for _, code := range ballot {
		switch {
		case !known[code]:
			s.warnf("voter %s: unknown candidate code %q", voterID, code)
		case seen[code]:
			s.warnf("voter %s: duplicate candidate code %q", voterID, code)
		default:
			seen[code] = true
			filtered = append(filtered, code)
		}
	}

	body, err := json.Marshal(filtered)
	if err != nil {
		return fmt.Errorf("encoding ballot: %w", err)
	}
	if s.secret != nil {
		body, err = sealBallot(s.secret, body)
		if err != nil {
			return fmt.Errorf("sealing ballot: %w", err)
		}
	}

	if err := s.fast.StoreBallot(ctx, electionID, voterID, body); err != nil {
		var stopped interface{ Stopped() }
		if errors.As(err, &stopped) {
			return alreadyStoppedf("election %d: %v", electionID, err)
		}
		var notExist interface{ DoesNotExist() }
		if errors.As(err, &notExist) {
			return notFoundf("election %d: %v", electionID, err)
		}
		return fmt.Errorf("storing ballot: %w", err)
	}
	return nil
}

// Stop builds a fresh stv.Engine for electionID from the stored
// configuration and ballots, drives it to completion, persists the
// serialised result to the long backend for audit, and returns it. Stop
// does not close ballot intake itself: a memory or postgres backend
// refuses further ballots once it holds a result for the election; the
// redis backend keeps accepting them.
func (s *Service) Stop(ctx context.Context, electionID int) (json.RawMessage, error) {
	result, err := s.compute(ctx, electionID, "")
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	if err := s.long.StoreResult(ctx, electionID, body); err != nil {
		var notExist interface{ DoesNotExist() }
		if errors.As(err, &notExist) {
			return nil, notFoundf("election %d: %v", electionID, err)
		}
		return nil, fmt.Errorf("storing result: %w", err)
	}
	return body, nil
}

// Result returns the previously stored result for electionID.
func (s *Service) Result(ctx context.Context, electionID int) (json.RawMessage, error) {
	body, err := s.long.Result(ctx, electionID)
	if err != nil {
		return nil, notFoundf("election %d: %v", electionID, err)
	}
	return body, nil
}

// Trace recomputes the count for electionID with a ballot-level trace
// for viewVoter, without re-persisting anything. The election must
// already have been Stopped (ballots are immutable once counted, same
// as the core's own static-shape-after-setup guarantee); Trace simply
// replays the same deterministic count to add per-voter detail to the
// response the stored result omits.
func (s *Service) Trace(ctx context.Context, electionID int, viewVoter string) (json.RawMessage, error) {
	result, err := s.compute(ctx, electionID, viewVoter)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return body, nil
}

// Clear removes all ballots, configuration, and results for electionID.
func (s *Service) Clear(ctx context.Context, electionID int) error {
	if err := s.fast.Clear(ctx, electionID); err != nil {
		return fmt.Errorf("clearing ballots: %w", err)
	}
	if s.fast != s.long {
		if err := s.long.Clear(ctx, electionID); err != nil {
			return fmt.Errorf("clearing election: %w", err)
		}
	}
	return nil
}

func (s *Service) compute(ctx context.Context, electionID int, viewVoter string) (Result, error) {
	cfg, err := s.long.Config(ctx, electionID)
	if err != nil {
		return Result{}, notFoundf("election %d: %v", electionID, err)
	}

	ballots, err := s.fast.Ballots(ctx, electionID)
	if err != nil {
		return Result{}, fmt.Errorf("fetching ballots: %w", err)
	}
	if viewVoter != "" {
		if _, ok := ballots[viewVoter]; !ok {
			viewVoter = ""
		}
	}

	engine := stv.New(cfg.UseGroups, cfg.ReactivationMode, stv.WarnFunc(s.Warn))

	for _, g := range cfg.Groups {
		if err := engine.AddGroup(g.Name, g.Seats); err != nil {
			return Result{}, fmt.Errorf("setup: %w", err)
		}
	}
	for _, c := range cfg.Candidates {
		if err := engine.AddCandidate(c.Code, c.Name, c.Group); err != nil {
			return Result{}, fmt.Errorf("setup: %w", err)
		}
	}
	for voterID, body := range ballots {
		if s.secret != nil {
			opened, err := openBallot(s.secret, body)
			if err != nil {
				return Result{}, fmt.Errorf("opening ballot for voter %s: %w", voterID, err)
			}
			body = opened
		}
		var ballot []string
		if err := json.Unmarshal(body, &ballot); err != nil {
			return Result{}, fmt.Errorf("decoding ballot for voter %s: %w", voterID, err)
		}
		if err := engine.AddVoter(voterID, ballot); err != nil {
			return Result{}, fmt.Errorf("setup: %w", err)
		}
	}

	pr := progress.New(engine)
	return buildResult(engine, pr, viewVoter), nil
}

func (s *Service) warnf(format string, a ...any) {
	if s.Warn != nil {
		s.Warn(format, a...)
	}
}
