package progress_test

import (
	"testing"

	"github.com/civiccount/stv-tabulator/stv"
	"github.com/civiccount/stv-tabulator/stv/progress"
	"github.com/shopspring/decimal"
)

func setupS3(t *testing.T) *stv.Engine {
	t.Helper()

	e := stv.New(true, false, func(format string, a ...any) {
		t.Logf("warning: "+format, a...)
	})

	groups := map[string]int{"g1": 1, "g2": 1}
	candidates := map[string]string{"a": "g1", "b": "g1", "c": "g2"}
	ballots := map[string][]string{
		"v1": {"a", "b", "c"},
		"v2": {"a", "b", "c"},
		"v3": {"a", "b", "c"},
		"v4": {"a", "b", "c"},
		"v5": {"c"},
	}

	for name, seats := range groups {
		if err := e.AddGroup(name, seats); err != nil {
			t.Fatalf("AddGroup(%s): %v", name, err)
		}
	}
	for code, group := range candidates {
		if err := e.AddCandidate(code, code, group); err != nil {
			t.Fatalf("AddCandidate(%s): %v", code, err)
		}
	}
	for id, ballot := range ballots {
		if err := e.AddVoter(id, ballot); err != nil {
			t.Fatalf("AddVoter(%s): %v", id, err)
		}
	}
	return e
}

// S6 — progress diff coverage: for every transform in the chain built
// from S3's fixture, the total weight sent out equals the total weight
// returned, within tolerance (conservation of weight).
func TestScenarioS6ProgressDiffCoverage(t *testing.T) {
	e := setupS3(t)
	pr := progress.New(e)

	tolerance := decimal.NewFromFloat(0.005)
	transforms := 0

	pr.IterTransformAndPosition(func(tr *progress.Transform, pos *progress.Position) bool {
		if pos == nil {
			t.Fatalf("nil position in chain")
		}
		if tr == nil {
			return true
		}
		transforms++

		sendTotal := decimal.Zero
		for _, vf := range tr.SendVFs {
			sendTotal = sendTotal.Add(vf.Fraction)
		}
		returnTotal := decimal.Zero
		for _, vf := range tr.ReturnVFs {
			returnTotal = returnTotal.Add(vf.Fraction)
		}

		if sendTotal.Sub(returnTotal).Abs().GreaterThan(tolerance) {
			t.Fatalf("transform %d: send total %s != return total %s", transforms, sendTotal, returnTotal)
		}
		return true
	})

	if transforms == 0 {
		t.Fatalf("expected at least one transform in the chain")
	}
}

// Start always returns the first recorded Position, and it carries no
// predecessor transform.
func TestProgressStartIsFirstPosition(t *testing.T) {
	e := setupS3(t)
	pr := progress.New(e)

	start := pr.Start()
	if start == nil {
		t.Fatalf("Start() = nil")
	}
	if start.LoopType != progress.Unknown {
		t.Fatalf("start.LoopType = %v, want Unknown (Beginning)", start.LoopType)
	}

	seenExclusion := false
	for p := start; p != nil; {
		if p.ExcludedGroup != "" {
			seenExclusion = true
			if p.ExcludedGroup != "g1" {
				t.Fatalf("excluded group = %s, want g1", p.ExcludedGroup)
			}
		}
		if p.Next() == nil {
			break
		}
		p = p.Next().Next()
	}
	if !seenExclusion {
		t.Fatalf("expected a position recording the group-exclusion cascade")
	}
}
