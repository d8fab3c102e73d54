package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/allocator/indicators"
	"github.com/rustyeddy/allocator/internal/id"
	"github.com/rustyeddy/allocator/journal"
	"github.com/rustyeddy/allocator/market"
	"github.com/rustyeddy/allocator/portfolio"
	"github.com/rustyeddy/allocator/risk"
)

const (
	// DefaultTickInterval is one week: the cadence the allocator was tuned
	// for. Daily runs work but proposers see far more noise.
	DefaultTickInterval = 168 * time.Hour

	// DefaultProposeTimeout bounds a single Propose call.
	DefaultProposeTimeout = 2 * time.Minute

	// indicatorWindow is how many bars of history feed the technical summary.
	indicatorWindow = 200

	// maxHistoryNotes caps the decision history handed back to the proposer.
	maxHistoryNotes = 4
)

// Params configures one run.
type Params struct {
	Start time.Time
	End   time.Time
	// TickInterval defaults to DefaultTickInterval.
	TickInterval time.Duration
	StartingCash float64
	// Benchmark is compared buy-and-hold over [Start, End]. Optional.
	Benchmark string
	// Watchlist is the tradable universe; quotes and indicators are derived
	// for these symbols each tick.
	Watchlist []string
	// ProposeTimeout defaults to DefaultProposeTimeout.
	ProposeTimeout time.Duration
}

func (p Params) withDefaults() Params {
	if p.TickInterval <= 0 {
		p.TickInterval = DefaultTickInterval
	}
	if p.ProposeTimeout <= 0 {
		p.ProposeTimeout = DefaultProposeTimeout
	}
	return p
}

// Runner drives the tick loop: data, snapshot, proposal, validation, fills.
type Runner struct {
	History  HistoryProvider
	Proposer Proposer
	Journal  journal.Journal
	Rules    risk.Config
	Logger   zerolog.Logger
}

// NewRunner builds a Runner with a no-op journal and a silent logger; both
// can be replaced before Run.
func NewRunner(h HistoryProvider, p Proposer, rules risk.Config) *Runner {
	return &Runner{
		History:  h,
		Proposer: p,
		Journal:  journal.Nop{},
		Rules:    rules,
		Logger:   zerolog.Nop(),
	}
}

// Run replays [p.Start, p.End] one tick at a time. A proposer failure skips
// that tick and the run continues; a rule-engine or ledger failure aborts.
func (r *Runner) Run(ctx context.Context, p Params) (Result, error) {
	if r.History == nil {
		return Result{}, fmt.Errorf("backtest: History is required")
	}
	if r.Proposer == nil {
		return Result{}, fmt.Errorf("backtest: Proposer is required")
	}
	p = p.withDefaults()
	if p.StartingCash <= 0 {
		return Result{}, fmt.Errorf("backtest: starting cash must be positive")
	}
	if p.End.Before(p.Start) {
		return Result{}, fmt.Errorf("backtest: end %s before start %s",
			p.End.Format("2006-01-02"), p.Start.Format("2006-01-02"))
	}

	series := r.loadSeries(p)

	runID := id.New()
	log := r.Logger.With().Str("run", runID).Logger()
	log.Info().
		Time("start", p.Start).Time("end", p.End).
		Dur("interval", p.TickInterval).
		Float64("cash", p.StartingCash).
		Msg("backtest starting")

	ledger := portfolio.NewLedger(p.StartingCash)

	res := Result{
		RunID:        runID,
		Start:        p.Start,
		End:          p.End,
		StartingCash: p.StartingCash,
	}
	var notes []DecisionNote

	tick := 0
	for t := p.Start; !t.After(p.End); t = t.Add(p.TickInterval) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		tick++

		quotes := make(map[string]market.Quote, len(series))
		prices := make(map[string]float64, len(series))
		for sym, s := range series {
			if q, ok := market.QuoteAt(s, t); ok {
				quotes[sym] = q
				prices[sym] = q.Price
			}
		}

		ledger.ObservePeak(ledger.TotalValue(prices))
		snap := ledger.Snapshot(prices, t)

		inds := make(map[string]indicators.Summary, len(series))
		for sym, s := range series {
			if sum, ok := indicators.Compute(market.Closes(s.UpTo(t, indicatorWindow))); ok {
				inds[sym] = sum
			}
		}

		bctx := Context{
			Week:       tick,
			Label:      weekLabel(tick),
			Snapshot:   anonymize(snap),
			Quotes:     quotes,
			Indicators: inds,
			History:    notes,
		}

		proposals, err := r.propose(ctx, p.ProposeTimeout, bctx)
		if err != nil {
			log.Warn().Err(err).Int("week", tick).Msg("proposer failed, skipping tick")
			res.SkippedTicks++
			notes = appendNote(notes, DecisionNote{Week: tick, Summary: "no decision (proposer failed)"})
			res.EquityCurve = r.recordEquity(runID, tick, t, ledger, prices, res.EquityCurve)
			continue
		}

		validated, warnings, err := risk.Validate(snap, proposals, quotes, r.Rules, t)
		if err != nil {
			return Result{}, fmt.Errorf("tick %d: %w", tick, err)
		}
		for _, w := range warnings {
			log.Warn().Int("week", tick).Msg(w)
		}

		applied, err := r.apply(log, runID, tick, t, ledger, quotes, validated)
		if err != nil {
			return Result{}, fmt.Errorf("tick %d: %w", tick, err)
		}
		res.TradeLog = append(res.TradeLog, applied...)

		res.EquityCurve = r.recordEquity(runID, tick, t, ledger, prices, res.EquityCurve)
		notes = appendNote(notes, DecisionNote{Week: tick, Summary: tickSummary(validated)})
	}
	res.Ticks = tick

	if len(res.EquityCurve) > 0 {
		res.FinalEquity = res.EquityCurve[len(res.EquityCurve)-1].Equity
	} else {
		res.FinalEquity = p.StartingCash
	}
	res.TotalReturnPct = (res.FinalEquity - p.StartingCash) / p.StartingCash * 100
	res.MaxDrawdownPct = maxDrawdown(res.EquityCurve) * 100
	if wr, ok := winRate(res.TradeLog); ok {
		res.WinRatePct = wr * 100
	}
	r.benchmark(&res, p, series)

	log.Info().
		Float64("final", res.FinalEquity).
		Float64("return_pct", res.TotalReturnPct).
		Int("trades", len(res.TradeLog)).
		Msg("backtest finished")

	return res, nil
}

// loadSeries fetches history for the watchlist plus the benchmark. A symbol
// that fails to load is dropped with a warning; it simply never quotes.
func (r *Runner) loadSeries(p Params) map[string]market.Series {
	symbols := make([]string, 0, len(p.Watchlist)+1)
	symbols = append(symbols, p.Watchlist...)
	if p.Benchmark != "" {
		symbols = append(symbols, p.Benchmark)
	}

	series := make(map[string]market.Series, len(symbols))
	for _, sym := range symbols {
		if _, loaded := series[sym]; loaded {
			continue
		}
		s, err := r.History.Series(sym)
		if err != nil {
			r.Logger.Warn().Err(err).Str("symbol", sym).Msg("history unavailable")
			continue
		}
		series[sym] = s
	}
	return series
}

func (r *Runner) propose(ctx context.Context, timeout time.Duration, c Context) ([]risk.ProposedTrade, error) {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.Proposer.Propose(pctx, c)
}

// apply executes every surviving trade against the ledger at the tick's
// quote price. A fill the ledger cannot afford is skipped, not fatal: the
// engine sized each trade against the same pre-trade snapshot, so a batch of
// approved buys can still overrun cash when applied in sequence.
func (r *Runner) apply(
	log zerolog.Logger,
	runID string,
	tick int,
	t time.Time,
	ledger *portfolio.Ledger,
	quotes map[string]market.Quote,
	validated []risk.ValidatedTrade,
) ([]portfolio.Execution, error) {
	var applied []portfolio.Execution

	for _, vt := range validated {
		if err := r.Journal.RecordValidation(validationRecord(runID, tick, t, vt)); err != nil {
			return nil, fmt.Errorf("journal validation: %w", err)
		}
		if vt.Outcome == risk.Rejected {
			continue
		}

		q, ok := quotes[vt.Trade.Symbol]
		if !ok || q.Price <= 0 {
			log.Warn().Str("symbol", vt.Trade.Symbol).Msg("no fill price, skipping trade")
			continue
		}

		var (
			ex  portfolio.Execution
			err error
		)
		switch vt.Trade.Action {
		case risk.ActionBuy:
			ex, err = ledger.Buy(vt.Trade.Symbol, vt.AmountUSD, q.Price, t)
		case risk.ActionSell:
			ex, err = ledger.Sell(vt.Trade.Symbol, vt.Quantity, vt.SellAll, q.Price, t)
		default:
			continue
		}
		if errors.Is(err, portfolio.ErrInsufficientCash) {
			log.Warn().Str("symbol", vt.Trade.Symbol).
				Float64("amount", vt.AmountUSD).
				Msg("insufficient cash at fill time, skipping trade")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("apply %s %s: %w", vt.Trade.Action, vt.Trade.Symbol, err)
		}

		applied = append(applied, ex)
		if err := r.Journal.RecordTrade(tradeRecord(runID, tick, ex)); err != nil {
			return nil, fmt.Errorf("journal trade: %w", err)
		}

		log.Info().
			Str("symbol", ex.Symbol).
			Str("action", ex.Action).
			Float64("qty", ex.Quantity).
			Float64("price", ex.Price).
			Str("origin", vt.Origin.String()).
			Msg("filled")
	}
	return applied, nil
}

func (r *Runner) recordEquity(
	runID string,
	tick int,
	t time.Time,
	ledger *portfolio.Ledger,
	prices map[string]float64,
	curve []EquityPoint,
) []EquityPoint {
	equity := ledger.TotalValue(prices)

	var dd float64
	if peak := ledger.Peak(); peak > 0 && equity < peak {
		dd = (peak - equity) / peak
	}

	point := EquityPoint{Date: t, Equity: equity, Cash: ledger.Cash(), Drawdown: dd}
	if err := r.Journal.RecordEquity(journal.EquityRecord{
		RunID: runID, Tick: tick, Date: t,
		Equity: equity, Cash: point.Cash, Drawdown: dd,
	}); err != nil {
		r.Logger.Warn().Err(err).Msg("journal equity")
	}
	return append(curve, point)
}

// benchmark computes the buy-and-hold return of the benchmark symbol over
// the run window, using as-of closes at both ends.
func (r *Runner) benchmark(res *Result, p Params, series map[string]market.Series) {
	if p.Benchmark == "" {
		return
	}
	s, ok := series[p.Benchmark]
	if !ok {
		return
	}
	first, ok1 := s.AsOf(p.Start)
	last, ok2 := s.AsOf(p.End)
	if !ok1 || !ok2 || first.Close <= 0 {
		return
	}
	res.BenchmarkReturnPct = (last.Close - first.Close) / first.Close * 100
	res.HasBenchmark = true
}

func appendNote(notes []DecisionNote, n DecisionNote) []DecisionNote {
	notes = append(notes, n)
	if len(notes) > maxHistoryNotes {
		notes = notes[len(notes)-maxHistoryNotes:]
	}
	return notes
}

func tickSummary(validated []risk.ValidatedTrade) string {
	var approved, modified, rejected, forced int
	for _, vt := range validated {
		if vt.Origin.Forced() {
			forced++
			continue
		}
		switch vt.Outcome {
		case risk.Approved:
			approved++
		case risk.Modified:
			modified++
		case risk.Rejected:
			rejected++
		}
	}
	if approved+modified+rejected+forced == 0 {
		return "held (no trades proposed)"
	}
	return fmt.Sprintf("%d approved, %d modified, %d rejected, %d forced",
		approved, modified, rejected, forced)
}

func validationRecord(runID string, tick int, t time.Time, vt risk.ValidatedTrade) journal.ValidationRecord {
	return journal.ValidationRecord{
		RunID:     runID,
		ID:        id.New(),
		Tick:      tick,
		Date:      t,
		Symbol:    vt.Trade.Symbol,
		Action:    string(vt.Trade.Action),
		Origin:    vt.Origin.String(),
		Outcome:   string(vt.Outcome),
		Reason:    vt.Reason,
		Detail:    vt.Detail,
		AmountUSD: vt.AmountUSD,
		Quantity:  vt.Quantity,
		Thesis:    vt.Trade.Thesis,
		Warnings:  joinWarnings(vt.Warnings),
	}
}

func tradeRecord(runID string, tick int, ex portfolio.Execution) journal.TradeRecord {
	return journal.TradeRecord{
		RunID:      runID,
		ID:         id.New(),
		Tick:       tick,
		Date:       ex.Date,
		Symbol:     ex.Symbol,
		Action:     ex.Action,
		Quantity:   ex.Quantity,
		Price:      ex.Price,
		Total:      ex.Total,
		AvgCost:    ex.AvgCost,
		RealizedPL: ex.RealizedPL,
	}
}

func joinWarnings(ws []string) string {
	switch len(ws) {
	case 0:
		return ""
	case 1:
		return ws[0]
	}
	out := ws[0]
	for _, w := range ws[1:] {
		out += "; " + w
	}
	return out
}
