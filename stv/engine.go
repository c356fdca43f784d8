package stv

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Start drives the count to completion, lazily. It returns a sequence
// of Status events; the engine suspends between yields and resumes
// only when the consumer asks for the next one (range-over-func). A
// consumer that stops ranging simply stops the engine — no cleanup is
// needed, since the core holds no external resources.
//
// Start must be called exactly once per Engine.
func (e *Engine) Start() func(yield func(Status) bool) {
	return func(yield func(Status) bool) {
		e.started = true

		if !yield(Status{Level: LevelBegin}) {
			return
		}

		for {
			if e.isSubround {
				e.subrounds++
			} else {
				e.rounds++
				e.subrounds = 1
			}
			e.isSubround = true
			e.loopCount = 0

			// Part 1: fixpoint (spec §4.D).
			for {
				e.loopCount++
				repeat := false

				for _, v := range e.voters {
					if v.needsAllocation {
						v.allocate()
						e.allocationCount++
					}
				}
				if e.allocationCount > 0 {
					if !yield(Status{Level: LevelLoop}) {
						return
					}
					e.allocationCount = 0
				}

				for _, w := range e.winners {
					if w.needsReduction {
						repeat = true
						w.reduce()
						e.reductionCount++
					}
				}
				if e.reductionCount > 0 {
					if !yield(Status{Level: LevelLoop}) {
						return
					}
					e.reductionCount = 0
				}

				if !repeat {
					break
				}
			}

			e.sortActive()

			if e.rounds == 1 && e.subrounds == 1 {
				if !yield(Status{Level: LevelInitial}) {
					return
				}
			}

			// Part 2: decide (spec §4.E).
			status := Status{}
			top := e.active[0]

			if top.Votes().GreaterThanOrEqual(e.Quota()) || len(e.winners)+len(e.active) == e.totalSeats {
				top.WonAtQuota = decimal.Min(e.Quota(), top.Votes())
				e.moveCandidate(top, &e.active, &e.winners, StatusPartial, false)
				top.needsReduction = true
				status.Winner = top

				group := top.Group
				group.SeatsWon++

				if e.UseGroups && group.Full() {
					for _, c := range append(append([]*Candidate{}, e.active...), e.deactivated...) {
						if c.Group != group {
							continue
						}
						from := &e.active
						if !e.contains(e.active, c) {
							from = &e.deactivated
						}
						e.moveCandidate(c, from, &e.excluded, StatusExcluded, true)
						status.ExcludedByGroup = append(status.ExcludedByGroup, c)
					}
				}

				if len(e.winners) == e.totalSeats {
					status.Level = LevelEnd
					yield(status)
					return
				}

				if e.ReactivationMode {
					status.Reactivated = e.reactivate(-1)
				}
				e.isSubround = false
			} else {
				loser := e.active[len(e.active)-1]
				e.moveCandidate(loser, &e.active, &e.deactivated, StatusDeactivated, true)
				status.Loser = loser
			}

			missing := e.totalSeats - len(e.winners) - len(e.active)
			if missing > 0 {
				reactivated := e.reactivate(missing)
				status.Reactivated = append(status.Reactivated, reactivated...)
				if len(reactivated) != missing {
					status.Level = LevelEnd
					status.Err = ReactivationFailedError{Round: e.rounds, Subround: e.subrounds, Missing: missing - len(reactivated)}
					yield(status)
					return
				}
			}

			if e.isSubround {
				status.Level = LevelSubround
			} else {
				status.Level = LevelRound
			}
			if !yield(status) {
				return
			}
		}
	}
}

func (e *Engine) sortActive() {
	sort.SliceStable(e.active, func(i, j int) bool {
		return e.active[i].Votes().GreaterThan(e.active[j].Votes())
	})
}

func (e *Engine) contains(list []*Candidate, c *Candidate) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}

// moveCandidate transfers a candidate between lists and updates its
// edges' status; when votersAllocate is set, every incident voter is
// marked for reallocation.
func (e *Engine) moveCandidate(c *Candidate, from, to *[]*Candidate, newStatus EdgeStatus, votersAllocate bool) {
	*from = removeCandidate(*from, c)
	*to = append(*to, c)

	for _, edge := range c.edges {
		edge.Status = newStatus
		if votersAllocate {
			edge.Voter.needsAllocation = true
		}
	}
}

func removeCandidate(list []*Candidate, c *Candidate) []*Candidate {
	out := list[:0:0]
	for _, x := range list {
		if x != c {
			out = append(out, x)
		}
	}
	return out
}

// reactivate moves deactivated candidates back to active, most
// recently deactivated first. limit < 0 reactivates all of them
// (win-triggered reactivation mode); limit > 0 reactivates at most
// that many (gap repair).
func (e *Engine) reactivate(limit int) []*Candidate {
	var reactivated []*Candidate
	for i := len(e.deactivated) - 1; i >= 0; i-- {
		c := e.deactivated[i]
		e.moveCandidate(c, &e.deactivated, &e.active, StatusActive, true)
		reactivated = append(reactivated, c)
		if limit >= 0 && len(reactivated) >= limit {
			break
		}
	}
	return reactivated
}
