package stv

import "github.com/shopspring/decimal"

// allocate runs the allocation operator (spec §4.B) on a single voter:
// it fixes weight already committed to PARTIAL/FULL edges, zeroes any
// stray ACTIVE weight, then sends the voter's remaining unit weight to
// the first live (ACTIVE or PARTIAL) edge in preference order. The
// remainder, if any, becomes waste.
func (v *Voter) allocate() {
	v.needsAllocation = false

	total := decimal.NewFromInt(1)
	for _, e := range v.edges {
		switch e.Status {
		case StatusPartial, StatusFull:
			total = total.Sub(e.Weight)
		default:
			if !e.Weight.IsZero() {
				e.Weight = decimal.Zero
				e.Candidate.votesDirty = true
			}
		}
	}

	if total.GreaterThan(tolerance) {
		for _, e := range v.edges {
			if e.Status == StatusActive || e.Status == StatusPartial {
				e.Weight = e.Weight.Add(total)
				total = decimal.Zero
				e.Candidate.votesDirty = true

				if e.Candidate.WonAtQuota.IsPositive() {
					e.Status = StatusPartial
					e.Candidate.needsReduction = true
				}
				break
			}
		}
	}

	v.waste = total
	v.wasteDirty = false
}
