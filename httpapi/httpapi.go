// Package httpapi serves spec.md §6's JSON front-end contract over
// HTTP, fronting an election.Service. Routing and error handling follow
// the teacher's vote/http package: a resolveError wrapper turns a
// Handler's returned error into a status code and a {"error","message"}
// body, and a plain health endpoint needs no authentication.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/civiccount/stv-tabulator/election"
	"github.com/civiccount/stv-tabulator/internal/log"
)

const base = "/system/stv"

// Server hosts the JSON front-end contract on a TCP listener.
type Server struct {
	Addr string
	lst  net.Listener
	svc  *election.Service
}

// New builds a Server bound to addr (e.g. ":8080"), fronting svc.
func New(addr string, svc *election.Service) *Server {
	return &Server{Addr: addr, svc: svc}
}

// StartListener opens the listener ahead of Run, so callers (notably
// tests) can discover the bound port before the server starts serving.
func (s *Server) StartListener() error {
	lst, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.Addr, err)
	}
	s.lst = lst
	s.Addr = lst.Addr().String()
	return nil
}

// Run serves the JSON front-end contract until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := registerHandlers(s.svc)

	srv := &http.Server{
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	wait := make(chan error, 1)
	go func() {
		<-ctx.Done()
		wait <- srv.Shutdown(context.Background())
	}()

	if s.lst == nil {
		if err := s.StartListener(); err != nil {
			return fmt.Errorf("start listening: %w", err)
		}
	}

	log.Info("Listen on %s", s.Addr)
	if err := srv.Serve(s.lst); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return <-wait
}

func registerHandlers(svc *election.Service) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle(base+"/create", resolveError(handleCreate(svc)))
	mux.Handle(base+"/vote", resolveError(handleVote(svc)))
	mux.Handle(base+"/stop", resolveError(handleStop(svc)))
	mux.Handle(base+"/result", resolveError(handleResult(svc)))
	mux.Handle(base+"/trace", resolveError(handleTrace(svc)))
	mux.Handle(base+"/clear", resolveError(handleClear(svc)))
	mux.Handle(base+"/health", resolveError(handleHealth()))

	return mux
}

func handleCreate(svc *election.Service) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := requirePost(r); err != nil {
			return err
		}
		w.Header().Set("Content-Type", "application/json")

		id, err := svc.Create(r.Context(), r.Body)
		if err != nil {
			return err
		}

		return json.NewEncoder(w).Encode(struct {
			ElectionID int `json:"election_id"`
		}{id})
	}
}

func handleVote(svc *election.Service) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := requirePost(r); err != nil {
			return err
		}
		w.Header().Set("Content-Type", "application/json")

		id, err := electionID(r)
		if err != nil {
			return err
		}
		voterID := r.URL.Query().Get("voter")
		if voterID == "" {
			return statusCode(http.StatusBadRequest, fmt.Errorf("no voter argument provided"))
		}

		return svc.SubmitBallot(r.Context(), id, voterID, r.Body)
	}
}

func handleStop(svc *election.Service) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := requirePost(r); err != nil {
			return err
		}
		w.Header().Set("Content-Type", "application/json")

		id, err := electionID(r)
		if err != nil {
			return err
		}

		body, err := svc.Stop(r.Context(), id)
		if err != nil {
			return err
		}
		_, err = w.Write(body)
		return err
	}
}

func handleResult(svc *election.Service) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		w.Header().Set("Content-Type", "application/json")

		id, err := electionID(r)
		if err != nil {
			return err
		}

		body, err := svc.Result(r.Context(), id)
		if err != nil {
			return err
		}
		_, err = w.Write(body)
		return err
	}
}

func handleTrace(svc *election.Service) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		w.Header().Set("Content-Type", "application/json")

		id, err := electionID(r)
		if err != nil {
			return err
		}
		viewVoter := r.URL.Query().Get("voter")

		body, err := svc.Trace(r.Context(), id, viewVoter)
		if err != nil {
			return err
		}
		_, err = w.Write(body)
		return err
	}
}

func handleClear(svc *election.Service) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := requirePost(r); err != nil {
			return err
		}

		id, err := electionID(r)
		if err != nil {
			return err
		}
		return svc.Clear(r.Context(), id)
	}
}

func handleHealth() HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"healthy": true, "service": "stv"}`)
		return nil
	}
}

func requirePost(r *http.Request) error {
	if r.Method != http.MethodPost {
		return statusCode(http.StatusMethodNotAllowed, fmt.Errorf("only POST is allowed"))
	}
	return nil
}

func electionID(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		return 0, statusCode(http.StatusBadRequest, fmt.Errorf("no id argument provided"))
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, statusCode(http.StatusBadRequest, fmt.Errorf("id invalid: expected int, got %s", raw))
	}
	return id, nil
}
