package stv

import "github.com/shopspring/decimal"

// tolerance is the "nonzero" comparison threshold from spec §5: values
// smaller than this in absolute value are treated as zero to prevent
// floating-point drift from causing an infinite allocate/reduce
// ping-pong. The source's explicit constant is 0.005.
var tolerance = decimal.NewFromFloat(0.005)

func isZero(d decimal.Decimal) bool {
	return d.Abs().LessThan(tolerance)
}

// EdgeStatus is the five-state status of a VoteLink edge.
type EdgeStatus int

const (
	StatusExcluded    EdgeStatus = -2
	StatusDeactivated EdgeStatus = -1
	StatusActive      EdgeStatus = 0
	StatusPartial     EdgeStatus = 1
	StatusFull        EdgeStatus = 2
)

func (s EdgeStatus) String() string {
	switch s {
	case StatusExcluded:
		return "excluded"
	case StatusDeactivated:
		return "deactivated"
	case StatusActive:
		return "active"
	case StatusPartial:
		return "partial"
	case StatusFull:
		return "full"
	default:
		return "unknown"
	}
}

// Group is a political/affiliation group with a seat target.
type Group struct {
	Name     string
	Seats    int
	SeatsWon int
}

// Full reports whether the group has won all the seats it was
// allotted.
func (g *Group) Full() bool {
	return g.SeatsWon >= g.Seats
}

// Candidate is a contestant, owned by exactly one Group.
type Candidate struct {
	Code  string
	Name  string
	Group *Group

	edges []*Edge

	votes          decimal.Decimal
	votesDirty     bool
	WonAtQuota     decimal.Decimal
	needsReduction bool
}

func newCandidate(code, name string, group *Group) *Candidate {
	return &Candidate{
		Code:       code,
		Name:       name,
		Group:      group,
		votesDirty: true,
	}
}

// Votes returns the candidate's current vote total, recomputed lazily
// from incident edge weights when the dirty flag is set.
func (c *Candidate) Votes() decimal.Decimal {
	if c.votesDirty {
		c.votesDirty = false
		sum := decimal.Zero
		for _, e := range c.edges {
			sum = sum.Add(e.Weight)
		}
		c.votes = sum
	}
	return c.votes
}

// Edges returns the candidate's incident edges in voter-insertion
// order. The slice must not be mutated by callers.
func (c *Candidate) Edges() []*Edge {
	return c.edges
}

// Voter is a ballot-caster with an ordered list of preferences.
type Voter struct {
	ID    string
	edges []*Edge // in preference order, most preferred first

	waste           decimal.Decimal
	wasteDirty      bool
	needsAllocation bool
}

func newVoter(id string) *Voter {
	return &Voter{
		ID:              id,
		waste:           decimal.NewFromInt(1),
		wasteDirty:      false,
		needsAllocation: true,
	}
}

// Waste returns the fraction of the voter's unit weight not currently
// assigned to any live candidate.
func (v *Voter) Waste() decimal.Decimal {
	if v.wasteDirty {
		v.wasteDirty = false
		sum := decimal.Zero
		for _, e := range v.edges {
			sum = sum.Add(e.Weight)
		}
		v.waste = decimal.NewFromInt(1).Sub(sum)
	}
	return v.waste
}

// Edges returns the voter's incident edges in ballot preference order.
// The slice must not be mutated by callers.
func (v *Voter) Edges() []*Edge {
	return v.edges
}

// Edge is a weighted, status-tagged link between a Voter and a
// Candidate (the "VoteLink" of spec §3). Edges are created once during
// setup and never destroyed; only Weight and Status mutate afterwards.
type Edge struct {
	Voter     *Voter
	Candidate *Candidate
	Weight    decimal.Decimal
	Status    EdgeStatus
}

func newEdge(voter *Voter, candidate *Candidate) *Edge {
	e := &Edge{
		Voter:     voter,
		Candidate: candidate,
		Weight:    decimal.Zero,
		Status:    StatusActive,
	}
	voter.edges = append(voter.edges, e)
	candidate.edges = append(candidate.edges, e)
	return e
}
