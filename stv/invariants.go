package stv

import "github.com/shopspring/decimal"

// CheckInvariants verifies the aggregate invariants of spec §3, i.e. the
// testable properties T1, T2, T4 and T5 of spec §8, plus
// len(winners) <= totalseats. Tests call it after every yielded event;
// it is not called by the engine itself (invariant checking is the
// caller's concern in debug/test builds, per spec §7's
// InvariantViolationError being "should not happen").
func (e *Engine) CheckInvariants() error {
	// T1: for every voter, weight + waste == 1 within tolerance.
	for _, v := range e.voters {
		sum := decimal.Zero
		for _, edge := range v.edges {
			sum = sum.Add(edge.Weight)
		}
		sum = sum.Add(v.Waste())
		if sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(tolerance) {
			return invariantViolationf("voter %s: weight+waste = %s, want 1", v.ID, sum)
		}
	}

	// T2: for every winner, sum of PARTIAL/FULL edge weight == WonAtQuota.
	for _, c := range e.winners {
		sum := decimal.Zero
		for _, edge := range c.edges {
			if edge.Status == StatusPartial || edge.Status == StatusFull {
				sum = sum.Add(edge.Weight)
			}
		}
		if sum.Sub(c.WonAtQuota).Abs().GreaterThan(tolerance) {
			return invariantViolationf("winner %s: supported weight = %s, want wonatquota %s", c.Code, sum, c.WonAtQuota)
		}
	}

	// T3/T4: candidate-list partition covers all candidates exactly once.
	seen := make(map[string]int, len(e.candidates))
	for _, list := range [][]*Candidate{e.winners, e.active, e.deactivated, e.excluded} {
		for _, c := range list {
			seen[c.Code]++
		}
	}
	if len(seen) != len(e.candidates) {
		return invariantViolationf("candidate partition covers %d of %d candidates", len(seen), len(e.candidates))
	}
	for code, n := range seen {
		if n != 1 {
			return invariantViolationf("candidate %s appears in %d lists, want 1", code, n)
		}
	}

	// T5: group seat quotas.
	if e.UseGroups {
		won := make(map[string]int)
		for _, c := range e.winners {
			won[c.Group.Name]++
		}
		for name, g := range e.groups {
			if g.SeatsWon != won[name] {
				return invariantViolationf("group %s: seatswon=%d, actual winners=%d", name, g.SeatsWon, won[name])
			}
			if g.SeatsWon > g.Seats {
				return invariantViolationf("group %s: seatswon=%d exceeds seats=%d", name, g.SeatsWon, g.Seats)
			}
		}
	}

	// len(winners) <= totalseats always.
	if len(e.winners) > e.totalSeats {
		return invariantViolationf("winners count %d exceeds total seats %d", len(e.winners), e.totalSeats)
	}

	return nil
}
