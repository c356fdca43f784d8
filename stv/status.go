package stv

// Level tells how far into the algorithm a Status was produced, so a
// consumer can subscribe to the granularity it cares about. Numerically
// smaller levels are coarser; a consumer at view-level V should keep
// events with Level <= V and drop the rest.
type Level int

// Yield levels, ordered coarse to fine except Initial, which is the
// special one-off "pretty first round" event.
const (
	LevelInitial  Level = -1
	LevelBegin    Level = 0
	LevelEnd      Level = 1
	LevelRound    Level = 2
	LevelSubround Level = 3
	LevelLoop     Level = 4
)

// Status is the result of one step of Engine.Start: a loop pass, a
// decision, or a lifecycle marker (begin/initial/end).
type Status struct {
	Level Level

	Winner          *Candidate
	Loser           *Candidate
	ExcludedByGroup []*Candidate
	Reactivated     []*Candidate

	// Err is set on the final event of the stream when counting
	// aborted on a fatal count-time condition (spec §7,
	// ReactivationFailedError). No further events follow.
	Err error
}

// HasDecision reports whether this Status represents a win or a loss,
// as opposed to a loop-progress or lifecycle marker.
func (s Status) HasDecision() bool {
	return s.Winner != nil || s.Loser != nil
}
