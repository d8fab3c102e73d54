// Package journal persists what the allocator decided and did: every
// validation verdict, every execution, and the equity curve, keyed by run so
// backtests can be replayed and audited after the fact.
package journal

import "time"

// ValidationRecord is one engine verdict on one trade.
type ValidationRecord struct {
	RunID     string
	ID        string
	Tick      int
	Date      time.Time
	Symbol    string
	Action    string
	Origin    string
	Outcome   string
	Reason    string
	Detail    string
	AmountUSD float64
	Quantity  float64
	Thesis    string
	Warnings  string
}

// TradeRecord is one executed fill against the ledger.
type TradeRecord struct {
	RunID      string
	ID         string
	Tick       int
	Date       time.Time
	Symbol     string
	Action     string
	Quantity   float64
	Price      float64
	Total      float64
	AvgCost    float64
	RealizedPL float64
}

// EquityRecord is one point on a run's equity curve.
type EquityRecord struct {
	RunID    string
	Tick     int
	Date     time.Time
	Equity   float64
	Cash     float64
	Drawdown float64
}

type Journal interface {
	RecordValidation(ValidationRecord) error
	RecordTrade(TradeRecord) error
	RecordEquity(EquityRecord) error
	Close() error
}

// Nop discards everything. Used when no journal path is configured and in
// tests that don't care about persistence.
type Nop struct{}

func (Nop) RecordValidation(ValidationRecord) error { return nil }
func (Nop) RecordTrade(TradeRecord) error           { return nil }
func (Nop) RecordEquity(EquityRecord) error         { return nil }
func (Nop) Close() error                            { return nil }
