// Package portfolio implements the in-memory account ledger: cash plus
// positions with weighted-average cost basis. A Ledger is mutated only
// through Buy/Sell and read through Snapshot; it is owned by exactly one
// cycle or backtest at a time and is not safe for concurrent use.
package portfolio

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// QuantityEpsilon is the share count below which a position is treated as
// fully closed and removed. Absorbs float round-off from dollar-sized fills.
const QuantityEpsilon = 1e-4

// cashEpsilon tolerates float round-off when a buy spends exactly the
// remaining cash.
const cashEpsilon = 1e-6

var (
	// ErrInsufficientCash means a buy would drive cash negative. Approved
	// buys are each sized against the same pre-trade snapshot, so a batch
	// can still overrun cash at fill time; callers choose to skip or abort.
	ErrInsufficientCash = errors.New("portfolio: insufficient cash")

	// ErrNoPosition means a sell was applied for a symbol not held. This is
	// unreachable through a correct validation pass and is fatal.
	ErrNoPosition = errors.New("portfolio: no position to sell")

	// ErrInvalidPrice means a fill price was zero or negative.
	ErrInvalidPrice = errors.New("portfolio: fill price must be positive")

	// ErrInvalidAmount means a buy amount or sell quantity was not positive.
	ErrInvalidAmount = errors.New("portfolio: amount must be positive")
)

// Position is a single holding with its running weighted-average cost.
type Position struct {
	Symbol   string    `json:"symbol"`
	Quantity float64   `json:"quantity"`
	AvgCost  float64   `json:"avg_cost"`
	OpenedAt time.Time `json:"opened_at"`
}

// Execution records one applied fill. SELL executions carry the realized P/L
// and the cost basis at the time of sale, which the win-rate metric needs.
type Execution struct {
	Date       time.Time `json:"date"`
	Symbol     string    `json:"symbol"`
	Action     string    `json:"action"` // BUY or SELL
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Total      float64   `json:"total"`
	AvgCost    float64   `json:"avg_cost,omitempty"`
	RealizedPL float64   `json:"realized_pl,omitempty"`
}

// Ledger is the mutable account state.
type Ledger struct {
	cash         float64
	startingCash float64
	positions    map[string]*Position

	// peak is the running maximum total value ever observed, advanced
	// monotonically via ObservePeak. The drawdown rule reads it from
	// snapshots.
	peak float64
}

// NewLedger creates a ledger holding only cash.
func NewLedger(startingCash float64) *Ledger {
	return &Ledger{
		cash:         startingCash,
		startingCash: startingCash,
		positions:    make(map[string]*Position),
		peak:         startingCash,
	}
}

func (l *Ledger) Cash() float64         { return l.cash }
func (l *Ledger) StartingCash() float64 { return l.startingCash }
func (l *Ledger) Peak() float64         { return l.peak }

// Position returns a copy of the held position for symbol.
func (l *Ledger) Position(symbol string) (Position, bool) {
	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns copies of all held positions, sorted by symbol.
func (l *Ledger) Positions() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// ObservePeak advances the running peak total value. Lower observations are
// ignored; the peak never moves backwards.
func (l *Ledger) ObservePeak(totalValue float64) {
	if totalValue > l.peak {
		l.peak = totalValue
	}
}

// TotalValue marks every position to the given prices and adds cash.
// A position with no price entry is valued at its average cost.
func (l *Ledger) TotalValue(prices map[string]float64) float64 {
	total := l.cash
	for sym, p := range l.positions {
		price, ok := prices[sym]
		if !ok || price <= 0 {
			price = p.AvgCost
		}
		total += p.Quantity * price
	}
	return total
}

// Buy spends amountUSD of cash on symbol at the fill price, updating the
// weighted-average cost basis. OpenedAt is set only on the first acquisition;
// adding to an existing position keeps the original date.
func (l *Ledger) Buy(symbol string, amountUSD, price float64, asOf time.Time) (Execution, error) {
	if price <= 0 {
		return Execution{}, fmt.Errorf("buy %s: %w (%.4f)", symbol, ErrInvalidPrice, price)
	}
	if amountUSD <= 0 {
		return Execution{}, fmt.Errorf("buy %s: %w (%.2f)", symbol, ErrInvalidAmount, amountUSD)
	}
	if amountUSD > l.cash+cashEpsilon {
		return Execution{}, fmt.Errorf("buy %s for %.2f with cash %.2f: %w",
			symbol, amountUSD, l.cash, ErrInsufficientCash)
	}

	quantity := amountUSD / price
	total := quantity * price

	if p, ok := l.positions[symbol]; ok {
		newQty := p.Quantity + quantity
		p.AvgCost = (p.AvgCost*p.Quantity + total) / newQty
		p.Quantity = newQty
	} else {
		l.positions[symbol] = &Position{
			Symbol:   symbol,
			Quantity: quantity,
			AvgCost:  price,
			OpenedAt: asOf,
		}
	}

	l.cash -= total
	if l.cash < 0 {
		l.cash = 0 // round-off only; real overdrafts error out above
	}

	return Execution{
		Date:     asOf,
		Symbol:   symbol,
		Action:   "BUY",
		Quantity: quantity,
		Price:    price,
		Total:    total,
	}, nil
}

// Sell disposes of quantity shares (or the whole position when all is set) at
// the fill price, realizing P/L against the weighted-average cost. The
// quantity is clipped to the held amount; the ledger never goes short. The
// position is removed once its remainder falls within QuantityEpsilon.
func (l *Ledger) Sell(symbol string, quantity float64, all bool, price float64, asOf time.Time) (Execution, error) {
	p, ok := l.positions[symbol]
	if !ok {
		return Execution{}, fmt.Errorf("sell %s: %w", symbol, ErrNoPosition)
	}
	if price <= 0 {
		return Execution{}, fmt.Errorf("sell %s: %w (%.4f)", symbol, ErrInvalidPrice, price)
	}

	if all {
		quantity = p.Quantity
	}
	if quantity <= 0 {
		return Execution{}, fmt.Errorf("sell %s: %w (%.4f)", symbol, ErrInvalidAmount, quantity)
	}
	if quantity > p.Quantity {
		quantity = p.Quantity
	}

	avgCost := p.AvgCost
	total := quantity * price
	realized := (price - avgCost) * quantity

	p.Quantity -= quantity
	if p.Quantity <= QuantityEpsilon {
		delete(l.positions, symbol)
	}

	l.cash += total

	return Execution{
		Date:       asOf,
		Symbol:     symbol,
		Action:     "SELL",
		Quantity:   quantity,
		Price:      price,
		Total:      total,
		AvgCost:    avgCost,
		RealizedPL: realized,
	}, nil
}
