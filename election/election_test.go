package election_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/civiccount/stv-tabulator/election"
	"github.com/civiccount/stv-tabulator/election/store/memory"
)

func newService(t *testing.T) (*election.Service, int) {
	t.Helper()
	m := memory.New()
	svc := election.New(m, m)

	body := `{
		"title": "Board",
		"use_groups": true,
		"reactivation_mode": false,
		"groups": [{"name": "g", "seats": 2}],
		"candidates": [
			{"code": "a", "name": "Alice", "group": "g"},
			{"code": "b", "name": "Bob", "group": "g"},
			{"code": "c", "name": "Carol", "group": "g"},
			{"code": "d", "name": "Dave", "group": "g"}
		]
	}`
	id, err := svc.Create(context.Background(), strings.NewReader(body))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return svc, id
}

func submit(t *testing.T, svc *election.Service, id int, voterID string, ballot string) {
	t.Helper()
	if err := svc.SubmitBallot(context.Background(), id, voterID, strings.NewReader(ballot)); err != nil {
		t.Fatalf("SubmitBallot(%s): %v", voterID, err)
	}
}

func TestServiceLifecycle(t *testing.T) {
	svc, id := newService(t)
	ctx := context.Background()

	submit(t, svc, id, "v1", `["a","b"]`)
	submit(t, svc, id, "v2", `["a","b"]`)
	submit(t, svc, id, "v3", `["a","c"]`)
	submit(t, svc, id, "v4", `["b","d"]`)
	submit(t, svc, id, "v5", `["c","d"]`)
	submit(t, svc, id, "v6", `["d","c"]`)

	body, err := svc.Stop(ctx, id)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}

	var result struct {
		Quota string `json:"quota"`
		Loops []struct {
			Round      int            `json:"round"`
			Candidates map[string]any `json:"candidates"`
		} `json:"loops"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Loops) == 0 {
		t.Fatalf("expected at least one loop in the result")
	}

	stored, err := svc.Result(ctx, id)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if string(stored) != string(body) {
		t.Fatalf("stored result != returned result")
	}

	if err := svc.Clear(ctx, id); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := svc.Result(ctx, id); err == nil {
		t.Fatalf("expected Result to fail after Clear")
	}
}

func TestSubmitBallotDropsUnknownAndDuplicateCodes(t *testing.T) {
	svc, id := newService(t)
	ctx := context.Background()

	var warnings []string
	svc.Warn = func(format string, a ...any) { warnings = append(warnings, format) }

	submit(t, svc, id, "v1", `["a","z","a","b"]`)
	if len(warnings) != 2 {
		t.Fatalf("warnings = %d, want 2 (unknown code + duplicate code)", len(warnings))
	}

	for _, voterID := range []string{"v2", "v3", "v4", "v5"} {
		submit(t, svc, id, voterID, `["b","d"]`)
	}

	body, err := svc.Stop(ctx, id)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(body) == 0 {
		t.Fatalf("expected a non-empty result")
	}
}

func TestSubmitBallotRejectsEmptyVoterID(t *testing.T) {
	svc, id := newService(t)
	err := svc.SubmitBallot(context.Background(), id, "", strings.NewReader(`["a"]`))
	if err == nil {
		t.Fatalf("expected validation error for empty voter id")
	}
}

func TestMaxBallotsCap(t *testing.T) {
	svc, id := newService(t)
	svc.MaxBallots = 1

	submit(t, svc, id, "v1", `["a"]`)
	err := svc.SubmitBallot(context.Background(), id, "v2", strings.NewReader(`["b"]`))
	if err == nil {
		t.Fatalf("expected TooManyBallotsError once MaxBallots is reached")
	}
	if _, ok := err.(election.TooManyBallotsError); !ok {
		t.Fatalf("err = %T, want election.TooManyBallotsError", err)
	}
}

func TestTraceIncludesViewVoterBallot(t *testing.T) {
	svc, id := newService(t)
	ctx := context.Background()

	submit(t, svc, id, "v1", `["a","b"]`)
	submit(t, svc, id, "v2", `["a","b"]`)
	submit(t, svc, id, "v3", `["a","c"]`)
	submit(t, svc, id, "v4", `["b","d"]`)
	submit(t, svc, id, "v5", `["c","d"]`)
	submit(t, svc, id, "v6", `["d","c"]`)

	if _, err := svc.Stop(ctx, id); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	body, err := svc.Trace(ctx, id, "v1")
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}

	var result struct {
		ViewVoter string `json:"viewvoter"`
		Loops     []struct {
			ViewBallot []struct {
				CCode    string `json:"ccode"`
				Fraction string `json:"fraction"`
				Status   string `json:"status"`
			} `json:"viewballot"`
		} `json:"loops"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("unmarshal trace: %v", err)
	}
	if result.ViewVoter != "v1" {
		t.Fatalf("viewvoter = %q, want v1", result.ViewVoter)
	}

	var sawBallot bool
	for _, loop := range result.Loops {
		if len(loop.ViewBallot) > 0 {
			sawBallot = true
		}
	}
	if !sawBallot {
		t.Fatalf("expected at least one loop with a non-empty viewballot trace")
	}
}

func TestSecretBallotRoundtrip(t *testing.T) {
	m := memory.New()
	aead, err := election.NewAEAD([]byte("a test secret key, not for prod"))
	if err != nil {
		t.Fatalf("NewAEAD: %v", err)
	}
	svc := election.New(m, m).WithSecret(aead)

	body := `{
		"title": "Secret Board",
		"use_groups": false,
		"groups": [{"name": "g", "seats": 1}],
		"candidates": [{"code": "a", "name": "Alice", "group": "g"}, {"code": "b", "name": "Bob", "group": "g"}]
	}`
	id, err := svc.Create(context.Background(), strings.NewReader(body))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	submit(t, svc, id, "v1", `["a"]`)
	submit(t, svc, id, "v2", `["b"]`)

	ballots, err := m.Ballots(context.Background(), id)
	if err != nil {
		t.Fatalf("Ballots: %v", err)
	}
	for voterID, raw := range ballots {
		if strings.Contains(string(raw), `["a"]`) || strings.Contains(string(raw), `["b"]`) {
			t.Fatalf("ballot for %s stored in plaintext: %s", voterID, raw)
		}
	}

	result, err := svc.Stop(context.Background(), id)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(result) == 0 {
		t.Fatalf("expected a non-empty result")
	}
}
