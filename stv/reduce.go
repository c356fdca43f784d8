package stv

import (
	"sort"

	"github.com/shopspring/decimal"
)

// reduce runs the reduction operator (spec §4.C) on a winner marked
// needsReduction: it partitions supporters into full and partial,
// sorts the partials ascending by weight, then performs a one-pass
// water-filling over partials-then-fulls to find the common support
// weight ("threshold") every full supporter ends up contributing.
func (c *Candidate) reduce() {
	c.needsReduction = false

	var fulls, partials []*Edge
	for _, e := range c.edges {
		switch {
		case e.Status == StatusFull:
			fulls = append(fulls, e)
		case e.Status == StatusPartial && e.Weight.IsPositive():
			partials = append(partials, e)
		}
	}

	sort.SliceStable(partials, func(i, j int) bool {
		return partials[i].Weight.LessThan(partials[j].Weight)
	})

	total := len(fulls) + len(partials)
	partialCount := 0
	partialWeight := decimal.Zero

	ordered := make([]*Edge, 0, total)
	ordered = append(ordered, partials...)
	ordered = append(ordered, fulls...)

	for _, e := range ordered {
		threshold := c.WonAtQuota.Sub(partialWeight).Div(decimal.NewFromInt(int64(total - partialCount)))

		if e.Status == StatusPartial {
			if e.Weight.LessThan(threshold) {
				partialCount++
				partialWeight = partialWeight.Add(e.Weight)
				continue
			}
			e.Status = StatusFull
		}

		if e.Status == StatusFull {
			e.Weight = threshold
			c.votesDirty = true
			e.Voter.needsAllocation = true
			e.Voter.wasteDirty = true
		}
	}
}
