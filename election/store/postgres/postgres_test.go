package postgres_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/civiccount/stv-tabulator/election/store"
	"github.com/civiccount/stv-tabulator/election/store/postgres"
	"github.com/ory/dockertest/v3"
)

func startPostgres(t *testing.T) (string, func()) {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not connect to docker: %s", err)
	}

	runOpts := dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=password",
			"POSTGRES_DB=database",
		},
	}

	resource, err := pool.RunWithOptions(&runOpts)
	if err != nil {
		t.Fatalf("could not start postgres container: %s", err)
	}

	return resource.GetPort("5432/tcp"), func() {
		if err := pool.Purge(resource); err != nil {
			t.Fatalf("could not purge postgres container: %s", err)
		}
	}
}

func TestBackendLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skip postgres test")
	}

	ctx := context.Background()
	port, closeFn := startPostgres(t)
	defer closeFn()

	addr := fmt.Sprintf(`user=postgres password='password' host=localhost port=%s dbname=database`, port)
	b, err := postgres.New(ctx, addr)
	if err != nil {
		t.Fatalf("creating postgres backend: %v", err)
	}
	defer b.Close()

	b.Wait(ctx, t.Logf)
	if err := b.Migrate(ctx); err != nil {
		t.Fatalf("creating db schema: %v", err)
	}

	cfg := store.ElectionConfig{
		Title:      "Board",
		UseGroups:  true,
		Groups:     []store.GroupConfig{{Name: "g", Seats: 1}},
		Candidates: []store.CandidateConfig{{Code: "a", Name: "Alice", Group: "g"}},
	}

	id, err := b.CreateElection(ctx, cfg)
	if err != nil {
		t.Fatalf("CreateElection: %v", err)
	}

	got, err := b.Config(ctx, id)
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if got.Title != cfg.Title || len(got.Groups) != 1 || len(got.Candidates) != 1 {
		t.Fatalf("Config = %+v, want roundtrip of %+v", got, cfg)
	}

	if err := b.StoreBallot(ctx, id, "v1", []byte(`["a"]`)); err != nil {
		t.Fatalf("StoreBallot: %v", err)
	}
	if err := b.StoreBallot(ctx, id, "v1", []byte(`["a","b"]`)); err != nil {
		t.Fatalf("StoreBallot (overwrite): %v", err)
	}

	count, err := b.BallotCount(ctx, id)
	if err != nil {
		t.Fatalf("BallotCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("BallotCount = %d, want 1 (overwrite, not append)", count)
	}

	ballots, err := b.Ballots(ctx, id)
	if err != nil {
		t.Fatalf("Ballots: %v", err)
	}
	if string(ballots["v1"]) != `["a","b"]` {
		t.Fatalf("ballots[v1] = %s, want overwritten value", ballots["v1"])
	}

	if err := b.StoreResult(ctx, id, []byte(`{"quota":1}`)); err != nil {
		t.Fatalf("StoreResult: %v", err)
	}
	if err := b.StoreBallot(ctx, id, "v2", []byte(`["a"]`)); err == nil {
		t.Fatalf("expected StoreBallot to fail after a result was stored")
	}

	result, err := b.Result(ctx, id)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if string(result) != `{"quota":1}` {
		t.Fatalf("Result = %s, want the stored blob", result)
	}

	if err := b.Clear(ctx, id); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := b.Config(ctx, id); err == nil {
		t.Fatalf("expected Config to fail after Clear")
	}
}
