// Package stv implements the counting core of a Single Transferable
// Vote tabulator with per-group seat quotas and an optional
// reactivation mode. See the package's accompanying specification for
// the full data model and algorithm; this file covers setup (the
// Ballot graph of spec §4.A).
package stv

import "github.com/shopspring/decimal"

// Engine holds the whole ballot graph and drives the count. Build one
// with New, populate it with AddGroup/AddCandidate/AddVoter, then call
// Start exactly once.
type Engine struct {
	UseGroups        bool
	ReactivationMode bool
	Warn             WarnFunc

	groups     map[string]*Group
	candidates map[string]*Candidate
	voters     map[string]*Voter

	totalSeats int

	winners     []*Candidate
	active      []*Candidate
	deactivated []*Candidate
	excluded    []*Candidate

	rounds          int
	subrounds       int
	isSubround      bool
	loopCount       int
	allocationCount int
	reductionCount  int

	started bool
}

// New creates an empty STV instance. Setup (AddGroup/AddCandidate/
// AddVoter) must run to completion before Start is called.
//
// warn receives non-fatal setup warnings (spec §7 SetupWarning); pass
// nil to discard them.
func New(useGroups, reactivationMode bool, warn WarnFunc) *Engine {
	return &Engine{
		UseGroups:        useGroups,
		ReactivationMode: reactivationMode,
		Warn:             warn,
		groups:           make(map[string]*Group),
		candidates:       make(map[string]*Candidate),
		voters:           make(map[string]*Voter),
	}
}

// AddGroup registers a group with its seat target. Group names must be
// unique.
func (e *Engine) AddGroup(name string, seats int) error {
	if e.started {
		return setupErrorf("cannot add group %q: counting has started", name)
	}
	if _, ok := e.groups[name]; ok {
		return setupErrorf("group %q was already added", name)
	}
	e.groups[name] = &Group{Name: name, Seats: seats}
	e.totalSeats += seats
	return nil
}

// AddCandidate registers a candidate belonging to an already-added
// group. Candidate codes must be unique.
func (e *Engine) AddCandidate(code, name, groupName string) error {
	if e.started {
		return setupErrorf("cannot add candidate %q: counting has started", code)
	}
	if _, ok := e.candidates[code]; ok {
		return setupErrorf("candidate %q was already added", code)
	}
	group, ok := e.groups[groupName]
	if !ok {
		return setupErrorf("cannot find group %q for candidate %q", groupName, code)
	}
	c := newCandidate(code, name, group)
	e.candidates[code] = c
	e.active = append(e.active, c)
	return nil
}

// AddVoter registers a voter and its ranked ballot. Unknown candidate
// codes and repeated codes are skipped with a warning rather than
// rejected; a voter with zero valid preferences is accepted and its
// entire weight becomes waste.
func (e *Engine) AddVoter(id string, ballot []string) error {
	if e.started {
		return setupErrorf("cannot add voter %q: counting has started", id)
	}
	if id == "" {
		return setupErrorf("cannot add voter with empty id")
	}
	if _, ok := e.voters[id]; ok {
		return setupErrorf("voter %q was already added", id)
	}

	v := newVoter(id)
	e.voters[id] = v

	seen := make(map[string]struct{}, len(ballot))
	for _, code := range ballot {
		if _, dup := seen[code]; dup {
			e.Warn.warnf("voter %s already specified candidate %s, ignoring", id, code)
			continue
		}
		cand, ok := e.candidates[code]
		if !ok {
			e.Warn.warnf("voter %s voted for unknown candidate code %s, ignoring", id, code)
			continue
		}
		seen[code] = struct{}{}
		newEdge(v, cand)
	}
	return nil
}

// Quota is the Hare quota: total voters divided by total seats.
func (e *Engine) Quota() decimal.Decimal {
	return decimal.NewFromInt(int64(len(e.voters))).Div(decimal.NewFromInt(int64(e.totalSeats)))
}

// TotalWaste is the total voters minus the vote totals of winners and
// still-active candidates.
func (e *Engine) TotalWaste() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range e.winners {
		sum = sum.Add(c.Votes())
	}
	for _, c := range e.active {
		sum = sum.Add(c.Votes())
	}
	return decimal.NewFromInt(int64(len(e.voters))).Sub(sum)
}

// TotalSeats is the sum of every group's seat target.
func (e *Engine) TotalSeats() int { return e.totalSeats }

// Rounds, Subrounds, LoopCount, AllocationCount, ReductionCount mirror
// the running counters in spec §6 Observation.
func (e *Engine) Rounds() int          { return e.rounds }
func (e *Engine) Subrounds() int       { return e.subrounds }
func (e *Engine) LoopCount() int       { return e.loopCount }
func (e *Engine) AllocationCount() int { return e.allocationCount }
func (e *Engine) ReductionCount() int  { return e.reductionCount }

// Winners, Active, Deactivated, Excluded expose the four disjoint
// candidate lists. The returned slices must not be mutated by callers.
func (e *Engine) Winners() []*Candidate     { return e.winners }
func (e *Engine) Active() []*Candidate      { return e.active }
func (e *Engine) Deactivated() []*Candidate { return e.deactivated }
func (e *Engine) Excluded() []*Candidate    { return e.excluded }

// Voters returns every voter keyed by id. The returned map must not be
// mutated by callers.
func (e *Engine) Voters() map[string]*Voter { return e.voters }

// Groups returns every group keyed by name. The returned map must not
// be mutated by callers.
func (e *Engine) Groups() map[string]*Group { return e.groups }
