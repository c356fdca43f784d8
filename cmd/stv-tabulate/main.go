// Command stv-tabulate runs a single count from the three-file CSV
// fixture format (Groups.csv, Candidates.csv, Votes.csv), in the shape
// of the reference CLI: a level of monitoring controls how much of the
// round-by-round trace gets printed, and an optional watched voter adds
// a per-candidate ballot breakdown.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/shopspring/decimal"

	"github.com/civiccount/stv-tabulator/election"
	"github.com/civiccount/stv-tabulator/internal/ingest/csv"
	"github.com/civiccount/stv-tabulator/stv"
)

type cli struct {
	Dir          string `arg:"" optional:"" help:"Directory holding Groups.csv, Candidates.csv, Votes.csv." default:"."`
	Groups       bool   `short:"g" help:"Use per-group seat quotas."`
	NoReactivate bool   `short:"n" help:"Disable reactivation of deactivated candidates."`
	Level        int    `short:"l" help:"Trace verbosity: 0=result only, 1=round, 2=subround, 3=loop." default:"0"`
	Watch        string `short:"w" placeholder:"VOTERID" help:"Print this voter's ballot trace at every reported step."`
	Format       string `short:"f" enum:"text,json" default:"text" help:"Report format."`
}

func main() {
	var c cli
	kong.Parse(&c, kong.Description("Tabulate a single-transferable-vote election from CSV."))

	if err := run(c); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(c cli) error {
	var warnings []string
	warn := func(format string, a ...any) { warnings = append(warnings, fmt.Sprintf(format, a...)) }

	engine := stv.New(c.Groups, !c.NoReactivate, stv.WarnFunc(warn))
	if err := csv.LoadDir(engine, c.Dir, warn); err != nil {
		return fmt.Errorf("loading %s: %w", c.Dir, err)
	}

	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, "Setup Warning:", w)
	}

	viewVoter := c.Watch
	if viewVoter != "" {
		if _, ok := engine.Voters()[viewVoter]; !ok {
			fmt.Fprintf(os.Stderr, "Warning: Could not find Voter with ID: %s\n", viewVoter)
			viewVoter = ""
		}
	}

	fmt.Printf("Seats: %d\nTotal Votes: %d  Quota: %s\n\n", engine.TotalSeats(), len(engine.Voters()), formatVote(engine.Quota()))

	level := stv.Level(c.Level + 1)
	for status := range engine.Start() {
		if status.Err != nil {
			return fmt.Errorf("counting: %w", status.Err)
		}
		if status.Level > level || status.Level == stv.LevelBegin {
			continue
		}
		printStep(engine, status, level, viewVoter)
	}

	switch c.Format {
	case "json":
		result := election.BuildResult(engine, viewVoter)
		enc, err := marshalIndent(result)
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		fmt.Println(string(enc))
	default:
		printFinalReport(engine, viewVoter)
	}
	return nil
}

func printStep(engine *stv.Engine, status stv.Status, level stv.Level, viewVoter string) {
	if status.Level == stv.LevelInitial {
		fmt.Println("Initial Round\n")
	} else if level >= stv.LevelRound {
		fmt.Printf("Round: %d.%d.%d\n", engine.Rounds(), engine.Subrounds(), engine.LoopCount())
		switch {
		case status.Winner != nil:
			fmt.Println("Win:", status.Winner.Name)
		case status.Loser != nil:
			fmt.Println("Loss:", status.Loser.Name)
		case engine.AllocationCount() > 0:
			fmt.Println("Allocations:", engine.AllocationCount())
		case engine.ReductionCount() > 0:
			fmt.Println("Reductions:", engine.ReductionCount())
		}
		fmt.Println()
	}

	if len(status.ExcludedByGroup) > 0 {
		fmt.Println("The following candidates have been excluded because their group quota has been met:")
		for _, c := range status.ExcludedByGroup {
			fmt.Println(c.Name)
		}
		fmt.Println()
	}
	if len(status.Reactivated) > 0 {
		fmt.Println("The following candidates have been returned to the active list:")
		for _, c := range status.Reactivated {
			fmt.Println(c.Name)
		}
		fmt.Println()
	}
	if viewVoter != "" {
		printBallotTrace(engine, viewVoter)
		fmt.Println()
	}
	fmt.Println("---------------------------")
}

func printFinalReport(engine *stv.Engine, viewVoter string) {
	fmt.Println("Votes Finished")
	for _, g := range engine.Groups() {
		fmt.Println(g.Name, g.SeatsWon, "/", g.Seats)
	}
	if n := len(engine.Voters()); n > 0 {
		avg := engine.TotalWaste().Div(decimal.NewFromInt(int64(n)))
		fmt.Println("Waste Percentage:", formatRatio(avg))
	}

	printCandidateList(engine)
	if viewVoter != "" {
		printBallotTrace(engine, viewVoter)
	}
}

func printCandidateList(engine *stv.Engine) {
	print := func(c *stv.Candidate, status string) {
		fmt.Printf("%-20s%s %s\n", c.Name, status, formatVote(c.Votes()))
	}
	for _, c := range engine.Winners() {
		print(c, "W")
	}
	for _, c := range engine.Active() {
		print(c, "A")
	}
	for i := len(engine.Deactivated()) - 1; i >= 0; i-- {
		print(engine.Deactivated()[i], "D")
	}
	for i := len(engine.Excluded()) - 1; i >= 0; i-- {
		print(engine.Excluded()[i], "E")
	}
	fmt.Println("------------")
	fmt.Printf("%-20s %s\n", "Total Waste", formatVote(engine.TotalWaste()))
}

func printBallotTrace(engine *stv.Engine, viewVoter string) {
	voter, ok := engine.Voters()[viewVoter]
	if !ok {
		return
	}
	fmt.Printf("\n%s list:\n", voter.ID)
	for _, edge := range voter.Edges() {
		fmt.Printf("%-20s%s %s\n", edge.Candidate.Name, formatRatio(edge.Weight), edge.Status.String())
	}
	fmt.Printf("%-20s%s\n", "Waste", formatRatio(voter.Waste()))
}

func formatVote(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func formatRatio(v decimal.Decimal) string {
	return v.Mul(decimal.NewFromInt(100)).StringFixed(0) + "%"
}

func marshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
