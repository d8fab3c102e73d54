// Package backtest replays historical bars through the allocator on a fixed
// clock. Each tick the runner assembles a context from data dated at or
// before the tick, asks a Proposer for trades, validates them, and applies
// the survivors to a simulated ledger. The proposer never sees a bar from
// the future, and never sees a real calendar date.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/allocator/indicators"
	"github.com/rustyeddy/allocator/market"
	"github.com/rustyeddy/allocator/portfolio"
	"github.com/rustyeddy/allocator/risk"
)

// DecisionNote is a one-line memory of a past tick, fed back to the proposer
// as history.
type DecisionNote struct {
	Week    int    `json:"week"`
	Summary string `json:"summary"`
}

// Context is everything a Proposer may see at one tick. Dates are
// anonymized: the snapshot carries holding ages but no calendar dates, and
// the tick is labelled "Week N" rather than by date, so a proposer with
// outside knowledge of history cannot cheat.
type Context struct {
	Week       int
	Label      string
	Snapshot   portfolio.Snapshot
	Quotes     map[string]market.Quote
	Indicators map[string]indicators.Summary
	History    []DecisionNote
}

// Proposer decides what to trade at each tick. Implementations range from
// scripted YAML fixtures to an LLM-backed strategist; the runner treats a
// Propose error as a skipped tick, never as a failed run.
type Proposer interface {
	Propose(ctx context.Context, c Context) ([]risk.ProposedTrade, error)
}

// anonymize strips calendar dates from a snapshot, keeping relative ages.
func anonymize(snap portfolio.Snapshot) portfolio.Snapshot {
	snap.AsOf = time.Time{}
	views := make([]portfolio.PositionView, len(snap.Positions))
	copy(views, snap.Positions)
	for i := range views {
		views[i].OpenedAt = time.Time{}
	}
	snap.Positions = views
	return snap
}

func weekLabel(week int) string {
	return fmt.Sprintf("Week %d", week)
}
