package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/civiccount/stv-tabulator/election"
	"github.com/civiccount/stv-tabulator/election/store/memory"
)

func newTestService(t *testing.T) *election.Service {
	t.Helper()
	m := memory.New()
	return election.New(m, m)
}

const createBody = `{
	"title": "Board",
	"use_groups": true,
	"reactivation_mode": false,
	"groups": [{"name": "g", "seats": 1}],
	"candidates": [
		{"code": "a", "name": "Alice", "group": "g"},
		{"code": "b", "name": "Bob", "group": "g"}
	]
}`

func TestHandleCreate(t *testing.T) {
	svc := newTestService(t)
	mux := resolveError(handleCreate(svc))

	t.Run("Method not allowed", func(t *testing.T) {
		resp := httptest.NewRecorder()
		mux.ServeHTTP(resp, httptest.NewRequest("GET", base+"/create", nil))
		if resp.Result().StatusCode != 405 {
			t.Errorf("status = %d, want 405", resp.Result().StatusCode)
		}
	})

	t.Run("Invalid body", func(t *testing.T) {
		resp := httptest.NewRecorder()
		mux.ServeHTTP(resp, httptest.NewRequest("POST", base+"/create", strings.NewReader("not json")))
		if resp.Result().StatusCode != 400 {
			t.Errorf("status = %d, want 400", resp.Result().StatusCode)
		}
	})

	t.Run("Valid", func(t *testing.T) {
		resp := httptest.NewRecorder()
		mux.ServeHTTP(resp, httptest.NewRequest("POST", base+"/create", strings.NewReader(createBody)))
		if resp.Result().StatusCode != 200 {
			t.Errorf("status = %d, want 200, body: %s", resp.Result().StatusCode, resp.Body.String())
		}

		var out struct {
			ElectionID int `json:"election_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if out.ElectionID == 0 {
			t.Errorf("election_id = 0, want a nonzero id")
		}
	})
}

func create(t *testing.T, svc *election.Service) int {
	t.Helper()
	id, err := svc.Create(context.Background(), strings.NewReader(createBody))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func TestHandleVote(t *testing.T) {
	svc := newTestService(t)
	id := create(t, svc)
	mux := resolveError(handleVote(svc))

	t.Run("No id", func(t *testing.T) {
		resp := httptest.NewRecorder()
		mux.ServeHTTP(resp, httptest.NewRequest("POST", base+"/vote?voter=v1", strings.NewReader(`["a"]`)))
		if resp.Result().StatusCode != 400 {
			t.Errorf("status = %d, want 400", resp.Result().StatusCode)
		}
	})

	t.Run("No voter", func(t *testing.T) {
		resp := httptest.NewRecorder()
		url := base + "/vote?id=" + itoa(id)
		mux.ServeHTTP(resp, httptest.NewRequest("POST", url, strings.NewReader(`["a"]`)))
		if resp.Result().StatusCode != 400 {
			t.Errorf("status = %d, want 400", resp.Result().StatusCode)
		}
	})

	t.Run("Valid", func(t *testing.T) {
		resp := httptest.NewRecorder()
		url := base + "/vote?id=" + itoa(id) + "&voter=v1"
		mux.ServeHTTP(resp, httptest.NewRequest("POST", url, strings.NewReader(`["a"]`)))
		if resp.Result().StatusCode != 200 {
			t.Errorf("status = %d, want 200, body: %s", resp.Result().StatusCode, resp.Body.String())
		}
	})
}

func TestHandleStopAndResultAndTrace(t *testing.T) {
	svc := newTestService(t)
	id := create(t, svc)

	if err := svc.SubmitBallot(context.Background(), id, "v1", strings.NewReader(`["a"]`)); err != nil {
		t.Fatalf("SubmitBallot: %v", err)
	}
	if err := svc.SubmitBallot(context.Background(), id, "v2", strings.NewReader(`["b"]`)); err != nil {
		t.Fatalf("SubmitBallot: %v", err)
	}

	stopMux := resolveError(handleStop(svc))
	resp := httptest.NewRecorder()
	stopMux.ServeHTTP(resp, httptest.NewRequest("POST", base+"/stop?id="+itoa(id), nil))
	if resp.Result().StatusCode != 200 {
		t.Fatalf("stop status = %d, want 200, body: %s", resp.Result().StatusCode, resp.Body.String())
	}

	resultMux := resolveError(handleResult(svc))
	resp = httptest.NewRecorder()
	resultMux.ServeHTTP(resp, httptest.NewRequest("GET", base+"/result?id="+itoa(id), nil))
	if resp.Result().StatusCode != 200 {
		t.Fatalf("result status = %d, want 200, body: %s", resp.Result().StatusCode, resp.Body.String())
	}

	traceMux := resolveError(handleTrace(svc))
	resp = httptest.NewRecorder()
	url := base + "/trace?id=" + itoa(id) + "&voter=v1"
	traceMux.ServeHTTP(resp, httptest.NewRequest("GET", url, nil))
	if resp.Result().StatusCode != 200 {
		t.Fatalf("trace status = %d, want 200, body: %s", resp.Result().StatusCode, resp.Body.String())
	}

	var trace struct {
		ViewVoter string `json:"viewvoter"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&trace); err != nil {
		t.Fatalf("decoding trace: %v", err)
	}
	if trace.ViewVoter != "v1" {
		t.Errorf("viewvoter = %q, want v1", trace.ViewVoter)
	}

	resp = httptest.NewRecorder()
	resultMux.ServeHTTP(resp, httptest.NewRequest("GET", base+"/result?id=999999", nil))
	if resp.Result().StatusCode != 404 {
		t.Errorf("status for missing election = %d, want 404", resp.Result().StatusCode)
	}
}

func TestHandleClear(t *testing.T) {
	svc := newTestService(t)
	id := create(t, svc)

	mux := resolveError(handleClear(svc))
	resp := httptest.NewRecorder()
	mux.ServeHTTP(resp, httptest.NewRequest("POST", base+"/clear?id="+itoa(id), nil))
	if resp.Result().StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.Result().StatusCode)
	}
}

func TestHandleHealth(t *testing.T) {
	mux := resolveError(handleHealth())
	resp := httptest.NewRecorder()
	mux.ServeHTTP(resp, httptest.NewRequest("GET", base+"/health", nil))
	if resp.Result().StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.Result().StatusCode)
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
