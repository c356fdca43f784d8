// Package progress implements the progress recorder of spec §4.G: it
// drives a fresh stv.Engine to completion and builds a linear chain of
// immutable Position snapshots joined by Transform deltas, suitable for
// consumption by visualisation/animation front-ends.
package progress

import (
	"fmt"

	"github.com/civiccount/stv-tabulator/stv"
	"github.com/shopspring/decimal"
)

// LoopType classifies what kind of step produced a Position.
type LoopType int

const (
	Unknown LoopType = iota
	Reduction
	Allocation
	Loss
	Win
)

// CandidateSnapshot is an immutable (code, votes) pair captured at a
// Position.
type CandidateSnapshot struct {
	Code  string
	Votes decimal.Decimal
}

// VoteFraction is a snapshot of one edge: which voter, how much weight,
// for which candidate, in what status.
type VoteFraction struct {
	VoterID       string
	Fraction      decimal.Decimal
	CandidateCode string
	Status        stv.EdgeStatus
}

type edgeKey struct {
	voterID string
	code    string
}

// Position is one immutable snapshot of the engine's state at a yield.
type Position struct {
	Round     int
	Subround  int
	LoopCount int
	LoopType  LoopType
	Message   string

	// ExcludedGroup is the group name a group-exclusion cascade fired
	// for at this Position, or "" if none did.
	ExcludedGroup string

	Winners     []CandidateSnapshot
	Active      []CandidateSnapshot
	Deactivated []CandidateSnapshot
	Excluded    []CandidateSnapshot

	VoteFractions map[edgeKey]VoteFraction
	Waste         map[string]decimal.Decimal

	// Err, set only on the terminal Position of an aborted count,
	// mirrors stv.Status.Err.
	Err error

	next *Transform
}

// HasDecision reports whether this Position was produced by a win or a
// loss, as opposed to a loop-progress step.
func (p *Position) HasDecision() bool {
	return p.LoopType == Loss || p.LoopType == Win
}

// Next returns the Transform from this Position to its successor, or
// nil if this is the last Position in the chain.
func (p *Position) Next() *Transform {
	return p.next
}

func snapshot(list []*stv.Candidate) []CandidateSnapshot {
	out := make([]CandidateSnapshot, len(list))
	for i, c := range list {
		out[i] = CandidateSnapshot{Code: c.Code, Votes: c.Votes()}
	}
	return out
}

func newPosition(e *stv.Engine, status stv.Status) *Position {
	p := &Position{
		Round:     e.Rounds(),
		Subround:  e.Subrounds(),
		LoopCount: e.LoopCount(),
		Err:       status.Err,
	}

	switch {
	case status.Winner != nil:
		p.LoopType = Win
		p.Message = fmt.Sprintf("Win: %s", status.Winner.Name)
	case status.Loser != nil:
		p.LoopType = Loss
		p.Message = fmt.Sprintf("Loss: %s", status.Loser.Name)
	case e.ReductionCount() > 0:
		p.LoopType = Reduction
		p.Message = fmt.Sprintf("Reductions: %d", e.ReductionCount())
	case e.AllocationCount() > 0:
		p.LoopType = Allocation
		p.Message = fmt.Sprintf("Allocations: %d", e.AllocationCount())
	default:
		p.LoopType = Unknown
		p.Message = "Beginning"
	}

	if len(status.ExcludedByGroup) > 0 {
		p.ExcludedGroup = status.ExcludedByGroup[0].Group.Name
		p.Message += fmt.Sprintf("\nExclusion of group: %s", p.ExcludedGroup)
	}

	p.Winners = snapshot(e.Winners())
	p.Active = snapshot(e.Active())
	p.Deactivated = snapshot(e.Deactivated())
	p.Excluded = snapshot(e.Excluded())

	p.VoteFractions = make(map[edgeKey]VoteFraction)
	p.Waste = make(map[string]decimal.Decimal)
	for id, voter := range e.Voters() {
		p.Waste[id] = voter.Waste()
		for _, edge := range voter.Edges() {
			key := edgeKey{voterID: id, code: edge.Candidate.Code}
			p.VoteFractions[key] = VoteFraction{
				VoterID:       id,
				Fraction:      edge.Weight,
				CandidateCode: edge.Candidate.Code,
				Status:        edge.Status,
			}
		}
	}

	return p
}

// Transform records the directed flow of weight between Position p and
// its successor: edges whose fraction grew (SendVFs) and edges whose
// fraction shrank (ReturnVFs).
type Transform struct {
	next      *Position
	SendVFs   []VoteFraction
	ReturnVFs []VoteFraction
}

// Next returns the Position this Transform leads to.
func (t *Transform) Next() *Position {
	return t.next
}

func addDifference(t *Transform, prev, next VoteFraction) {
	diff := next.Fraction.Sub(prev.Fraction)
	if diff.IsZero() {
		return
	}
	vf := VoteFraction{VoterID: next.VoterID, Fraction: diff.Abs(), CandidateCode: next.CandidateCode, Status: next.Status}
	if diff.IsPositive() {
		t.SendVFs = append(t.SendVFs, vf)
	} else {
		t.ReturnVFs = append(t.ReturnVFs, vf)
	}
}

func linkPositions(prev, next *Position) {
	t := &Transform{next: next}
	prev.next = t
	for key, nvf := range next.VoteFractions {
		addDifference(t, prev.VoteFractions[key], nvf)
	}
}

// Progress drives a fresh stv.Engine to completion and builds the full
// Position/Transform chain.
type Progress struct {
	start *Position
}

// New drives engine to completion, recording every yielded event with
// Level >= 0 (Begin, End, Round, Subround and Loop; only the Initial
// event is skipped, following the canonical implementation's
// "yieldlevel >= 0" filter) as a Position.
// engine must not have been started yet.
func New(engine *stv.Engine) *Progress {
	pr := &Progress{}
	var current *Position

	for status := range engine.Start() {
		if status.Level < 0 {
			continue
		}

		next := newPosition(engine, status)
		if pr.start == nil {
			pr.start = next
		} else {
			linkPositions(current, next)
		}
		current = next
	}

	return pr
}

// Start returns the first Position in the chain, or nil if the engine
// produced no events (should not happen for a validly set-up engine).
func (pr *Progress) Start() *Position {
	return pr.start
}

// IterTransformAndPosition walks the full (Transform, Position) chain
// in order, starting with (nil, Start()) — the Go rendering of spec
// §6.5's iter_transform_and_position.
func (pr *Progress) IterTransformAndPosition(yield func(*Transform, *Position) bool) {
	if pr.start == nil {
		return
	}
	if !yield(nil, pr.start) {
		return
	}
	t := pr.start.next
	for t != nil {
		if !yield(t, t.next) {
			return
		}
		t = t.next.next
	}
}
