package portfolio

import (
	"sort"
	"time"
)

// PositionView is a position marked to market inside a Snapshot.
type PositionView struct {
	Symbol       string    `json:"symbol"`
	Quantity     float64   `json:"quantity"`
	AvgCost      float64   `json:"avg_cost"`
	Price        float64   `json:"price"`
	MarketValue  float64   `json:"market_value"`
	UnrealizedPL float64   `json:"unrealized_pl"`
	// PLFraction is the unrealized P/L as a fraction of the cost basis
	// (-0.15 means down 15%). The stop-loss rule compares against it.
	PLFraction  float64   `json:"pl_fraction"`
	Weight      float64   `json:"weight"`
	OpenedAt    time.Time `json:"opened_at"`
	HoldingDays int       `json:"holding_days"`
}

// Snapshot is an immutable point-in-time view of a ledger, marked to the
// given prices. It is the only portfolio shape the risk engine sees.
type Snapshot struct {
	AsOf         time.Time      `json:"as_of"`
	Cash         float64        `json:"cash"`
	Invested     float64        `json:"invested"`
	TotalValue   float64        `json:"total_value"`
	CashFraction float64        `json:"cash_fraction"`
	Peak         float64        `json:"peak"`
	Positions    []PositionView `json:"positions"`
}

// Position finds the view for symbol.
func (s Snapshot) Position(symbol string) (PositionView, bool) {
	for _, p := range s.Positions {
		if p.Symbol == symbol {
			return p, true
		}
	}
	return PositionView{}, false
}

// Snapshot marks every open position to the given prices and derives totals,
// weights, and holding ages. It is a pure read: the ledger is not modified,
// and the returned value shares no state with it. A position with no price
// entry is valued at its average cost (stale-mark fallback).
func (l *Ledger) Snapshot(prices map[string]float64, asOf time.Time) Snapshot {
	views := make([]PositionView, 0, len(l.positions))

	var invested float64
	for sym, p := range l.positions {
		price, ok := prices[sym]
		if !ok || price <= 0 {
			price = p.AvgCost
		}

		marketValue := p.Quantity * price
		costBasis := p.Quantity * p.AvgCost
		unrealized := marketValue - costBasis

		v := PositionView{
			Symbol:       sym,
			Quantity:     p.Quantity,
			AvgCost:      p.AvgCost,
			Price:        price,
			MarketValue:  marketValue,
			UnrealizedPL: unrealized,
			OpenedAt:     p.OpenedAt,
		}
		if costBasis > 0 {
			v.PLFraction = unrealized / costBasis
		}
		if !p.OpenedAt.IsZero() && asOf.After(p.OpenedAt) {
			v.HoldingDays = int(asOf.Sub(p.OpenedAt).Hours() / 24)
		}

		views = append(views, v)
		invested += marketValue
	}

	sort.Slice(views, func(i, j int) bool { return views[i].Symbol < views[j].Symbol })

	total := l.cash + invested
	snap := Snapshot{
		AsOf:       asOf,
		Cash:       l.cash,
		Invested:   invested,
		TotalValue: total,
		Peak:       l.peak,
		Positions:  views,
	}

	if total > 0 {
		snap.CashFraction = l.cash / total
		for i := range snap.Positions {
			snap.Positions[i].Weight = snap.Positions[i].MarketValue / total
		}
	} else {
		snap.CashFraction = 1
	}

	return snap
}
