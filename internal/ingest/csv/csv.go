// Package csv loads the three-file CSV fixture format accepted by the
// reference CLI: Groups.csv ("groupname,seats"), Candidates.csv
// ("code,name,groupname"), and Votes.csv ("voterid,code1,code2,...").
// It is thin glue around stv.Engine — the engine itself is agnostic to
// the carrier format.
package csv

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/civiccount/stv-tabulator/stv"
)

// LoadError wraps a line-numbered failure while reading one of the
// three CSV files, giving callers enough context to report it the way
// the reference CLI does ("Could not decode group at line N").
type LoadError struct {
	File string
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadGroups reads "groupname,seats" lines and registers each group on
// engine. Blank lines are skipped.
func LoadGroups(engine *stv.Engine, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 2 {
			return &LoadError{File: "Groups.csv", Line: lineNum, Err: fmt.Errorf("want 2 fields, got %d", len(fields))}
		}
		seats, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return &LoadError{File: "Groups.csv", Line: lineNum, Err: err}
		}
		if err := engine.AddGroup(strings.TrimSpace(fields[0]), seats); err != nil {
			return &LoadError{File: "Groups.csv", Line: lineNum, Err: err}
		}
	}
	return scanner.Err()
}

// LoadCandidates reads "code,name,groupname" lines and registers each
// candidate on engine. Blank lines are skipped.
func LoadCandidates(engine *stv.Engine, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, ",", 3)
		if len(fields) != 3 {
			return &LoadError{File: "Candidates.csv", Line: lineNum, Err: fmt.Errorf("want 3 fields, got %d", len(fields))}
		}
		code := strings.TrimSpace(fields[0])
		name := strings.TrimSpace(fields[1])
		group := strings.TrimSpace(fields[2])
		if err := engine.AddCandidate(code, name, group); err != nil {
			return &LoadError{File: "Candidates.csv", Line: lineNum, Err: err}
		}
	}
	return scanner.Err()
}

// LoadVotes reads "voterid,code1,code2,..." lines and registers each
// voter's ballot on engine. A malformed line (no voter id) is a
// setup warning, not a fatal error, matching the reference CLI's
// "Setup Warning: Could not decode voter at line N" behaviour: it is
// skipped and reported through warn, which may be nil.
func LoadVotes(engine *stv.Engine, r io.Reader, warn func(format string, a ...any)) error {
	scanner := bufio.NewScanner(r)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		voterID := strings.TrimSpace(fields[0])
		if voterID == "" {
			if warn != nil {
				warn("Could not decode voter at line %d", lineNum)
			}
			continue
		}
		ballot := make([]string, 0, len(fields)-1)
		for _, code := range fields[1:] {
			ballot = append(ballot, strings.TrimSpace(code))
		}
		if err := engine.AddVoter(voterID, ballot); err != nil {
			return &LoadError{File: "Votes.csv", Line: lineNum, Err: err}
		}
	}
	return scanner.Err()
}

// LoadDir opens Groups.csv, Candidates.csv, and Votes.csv in dir (the
// working directory if dir is "") and loads them into engine in that
// order, matching the setup sequencing required by the engine (groups
// before candidates before voters).
func LoadDir(engine *stv.Engine, dir string, warn func(format string, a ...any)) error {
	groups, err := os.Open(joinPath(dir, "Groups.csv"))
	if err != nil {
		return err
	}
	defer groups.Close()
	if err := LoadGroups(engine, groups); err != nil {
		return err
	}

	candidates, err := os.Open(joinPath(dir, "Candidates.csv"))
	if err != nil {
		return err
	}
	defer candidates.Close()
	if err := LoadCandidates(engine, candidates); err != nil {
		return err
	}

	votes, err := os.Open(joinPath(dir, "Votes.csv"))
	if err != nil {
		return err
	}
	defer votes.Close()
	return LoadVotes(engine, votes, warn)
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}
