package election

import (
	"strings"

	"github.com/civiccount/stv-tabulator/stv"
	"github.com/civiccount/stv-tabulator/stv/progress"
	"github.com/shopspring/decimal"
)

// candidateResult is one candidate's entry in a loopResult, matching
// the reference cloud function's pos_to_json candidate shape.
type candidateResult struct {
	Votes  decimal.Decimal `json:"votes"`
	Status string          `json:"status"`
	Quota  decimal.Decimal `json:"quota"`
}

// ballotLine is one line of a watched voter's ballot trace.
type ballotLine struct {
	CandidateCode string          `json:"ccode"`
	Fraction      decimal.Decimal `json:"fraction"`
	Status        string          `json:"status"`
}

// loopResult is one Position rendered to the JSON front-end contract,
// with navigation links to the surrounding rounds/subrounds restored
// from the reference cloud function (spec.md's distillation dropped
// them; they are pure response-shaping, no effect on the count).
type loopResult struct {
	Round            int                        `json:"round"`
	Subround         int                        `json:"subround"`
	LoopCount        int                        `json:"loopcount"`
	LoopType         progress.LoopType          `json:"looptype"`
	Message          string                     `json:"message"`
	Candidates       map[string]candidateResult `json:"candidates"`
	Waste            decimal.Decimal            `json:"waste"`
	ViewBallot       []ballotLine               `json:"viewballot,omitempty"`
	NextRound        int                        `json:"nextRound"`
	NextSubround     int                        `json:"nextSubround"`
	PreviousRound    int                        `json:"previousRound"`
	PreviousSubround int                        `json:"previousSubround"`
}

// Result is the full serialised outcome of a completed count.
type Result struct {
	Quota     decimal.Decimal `json:"quota"`
	Loops     []loopResult    `json:"loops"`
	ViewVoter string          `json:"viewvoter,omitempty"`
}

// statusLetter renders an edge status as the single uppercase letter
// the reference cloud function's ballot trace uses ("E"/"D"/"A"/"P"/"F").
func statusLetter(s stv.EdgeStatus) string {
	word := s.String()
	return strings.ToUpper(word[:1])
}

func positionToResult(pos *progress.Position, initQuota decimal.Decimal, winnersQuota map[string]decimal.Decimal, viewVoter string) loopResult {
	lr := loopResult{
		Round:     pos.Round,
		Subround:  pos.Subround,
		LoopCount: pos.LoopCount,
		LoopType:  pos.LoopType,
		Message:   pos.Message,
		Candidates: make(map[string]candidateResult,
			len(pos.Winners)+len(pos.Active)+len(pos.Deactivated)+len(pos.Excluded)),
	}

	waste := decimal.Zero
	for _, w := range pos.Waste {
		waste = waste.Add(w)
	}
	lr.Waste = waste

	add := func(snaps []progress.CandidateSnapshot, status string) {
		for _, c := range snaps {
			quota := initQuota
			if status == "winner" {
				quota = winnersQuota[c.Code]
			}
			lr.Candidates[c.Code] = candidateResult{Votes: c.Votes, Status: status, Quota: quota}
		}
	}
	add(pos.Winners, "winner")
	add(pos.Active, "active")
	add(pos.Deactivated, "deactivated")
	add(pos.Excluded, "excluded")

	if viewVoter != "" {
		lr.ViewBallot = []ballotLine{}
		for _, vf := range pos.VoteFractions {
			if vf.VoterID != viewVoter {
				continue
			}
			lr.ViewBallot = append(lr.ViewBallot, ballotLine{
				CandidateCode: vf.CandidateCode,
				Fraction:      vf.Fraction,
				Status:        statusLetter(vf.Status),
			})
		}
	}

	return lr
}

// BuildResult drives a fully set-up engine to completion and renders the
// same JSON result shape Service.Stop and Service.Trace produce, for
// callers (notably cmd/stv-tabulate) that have no backend to go through.
func BuildResult(engine *stv.Engine, viewVoter string) Result {
	return buildResult(engine, progress.New(engine), viewVoter)
}

// buildResult drives engine to completion via pr's full Position/Transform
// chain into a Result, including the navigation-link pass from the
// reference cloud function: every loop gets nextRound/nextSubround (the
// index of the last loop in the round, or round/subround, of the loop
// that follows it, so the last loop of a round points at the end of the
// next one; the final loop points at itself) and
// previousRound/previousSubround (the index of the first loop that has
// the same nextRound, or nextRound/nextSubround, value). engine must
// already have been driven to completion by pr (i.e. pr == progress.New(engine)).
func buildResult(engine *stv.Engine, pr *progress.Progress, viewVoter string) Result {
	if pr.Start() == nil {
		return Result{}
	}

	initQuota := engine.Quota()
	winnersQuota := make(map[string]decimal.Decimal, len(engine.Winners()))
	for _, w := range engine.Winners() {
		winnersQuota[w.Code] = w.WonAtQuota
	}

	var loops []loopResult
	pr.IterTransformAndPosition(func(_ *progress.Transform, pos *progress.Position) bool {
		if pos == nil {
			return true
		}
		loops = append(loops, positionToResult(pos, initQuota, winnersQuota, viewVoter))
		return true
	})

	lastRoundIdx := len(loops) - 1
	lastSubroundIdx := len(loops) - 1
	lastRound := loops[lastRoundIdx].Round
	lastSubround := loops[lastSubroundIdx].Subround
	for i := len(loops) - 1; i >= 0; i-- {
		loops[i].NextRound = lastRoundIdx
		loops[i].NextSubround = lastSubroundIdx
		roundChanged := loops[i].Round != lastRound
		if roundChanged {
			lastRound = loops[i].Round
			lastRoundIdx = i
		}
		if roundChanged || loops[i].Subround != lastSubround {
			lastSubround = loops[i].Subround
			lastSubroundIdx = i
		}
	}

	lastRoundIdx = 0
	lastSubroundIdx = 0
	lastRound = loops[lastRoundIdx].NextRound
	lastSubround = loops[lastSubroundIdx].NextSubround
	for i := range loops {
		loops[i].PreviousRound = lastRoundIdx
		loops[i].PreviousSubround = lastSubroundIdx
		if loops[i].NextRound != lastRound {
			lastRound = loops[i].NextRound
			lastRoundIdx = i
		}
		if loops[i].NextRound != lastRound || loops[i].NextSubround != lastSubround {
			lastSubround = loops[i].NextSubround
			lastSubroundIdx = i
		}
	}

	return Result{Quota: initQuota, Loops: loops, ViewVoter: viewVoter}
}
