// Package risk implements the validation engine: a pure function that turns
// a portfolio snapshot and a batch of proposed trades into a final, ordered,
// annotated trade list under hard capital-protection rules. Identical inputs
// always produce identical outputs, so live cycles and backtest replays run
// the exact same code path.
package risk

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rustyeddy/allocator/market"
	"github.com/rustyeddy/allocator/portfolio"
)

// MinFillUSD is the minimum tradable increment. Clipping a buy below this
// rejects it instead; forced sells smaller than this are skipped.
const MinFillUSD = 1.0

// drawdownReduction is the fraction of each position force-sold when the
// portfolio drawdown breaches MaxDrawdownPct.
const drawdownReduction = 0.5

// ErrSnapshotInvariant is returned when the input snapshot itself violates a
// ledger invariant (negative cash or quantity). This means upstream state is
// corrupt and no trade can be evaluated safely.
var ErrSnapshotInvariant = errors.New("risk: snapshot invariant violation")

// Validate runs every rule against the proposed trades and returns the final
// trade list plus engine-level warnings.
//
// Rule order is load-bearing and must not change:
//
//  1. stop-loss scan over held positions (forced full sells)
//  2. portfolio drawdown scan (forced 50% exposure reduction)
//  3. bootstrap detection (trade cap doubled for this call only)
//  4. per-trade gates on discretionary proposals, highest urgency first,
//     then the trade-count cap
//  5. correlation warnings on surviving buys (never blocking)
//
// The returned list is ordered: forced trades first, surviving discretionary
// trades next, rejected trades last for audit visibility.
func Validate(
	snap portfolio.Snapshot,
	proposed []ProposedTrade,
	quotes map[string]market.Quote,
	cfg Config,
	today time.Time,
) ([]ValidatedTrade, []string, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := checkSnapshot(snap); err != nil {
		return nil, nil, err
	}

	var warnings []string

	forced, overridden := stopLossScan(snap, cfg)
	if len(forced) > 0 {
		warnings = append(warnings,
			fmt.Sprintf("stop-loss triggered for: %s", strings.Join(symbolsOf(forced), ", ")))
	}

	ddForced, ddWarning := drawdownScan(snap, cfg, overridden)
	if ddWarning != "" {
		warnings = append(warnings, ddWarning)
	}
	forced = append(forced, ddForced...)

	maxTrades := cfg.MaxTradesPerCycle
	if snap.CashFraction > cfg.BootstrapCashThreshold {
		maxTrades *= 2
		warnings = append(warnings,
			fmt.Sprintf("bootstrap mode: cash fraction %.0f%% above %.0f%%, trade cap doubled to %d",
				snap.CashFraction*100, cfg.BootstrapCashThreshold*100, maxTrades))
	}

	kept, rejected := validateDiscretionary(snap, proposed, quotes, cfg, today, overridden, maxTrades)

	warnings = append(warnings, correlationPass(kept, cfg)...)

	final := make([]ValidatedTrade, 0, len(forced)+len(kept)+len(rejected))
	final = append(final, forced...)
	final = append(final, kept...)
	final = append(final, rejected...)
	return final, warnings, nil
}

func checkSnapshot(snap portfolio.Snapshot) error {
	if snap.Cash < 0 {
		return fmt.Errorf("%w: negative cash %.2f", ErrSnapshotInvariant, snap.Cash)
	}
	for _, pv := range snap.Positions {
		if pv.Quantity < 0 {
			return fmt.Errorf("%w: negative quantity %.4f for %s",
				ErrSnapshotInvariant, pv.Quantity, pv.Symbol)
		}
	}
	return nil
}

// stopLossScan synthesises a full forced sell for every position whose
// unrealized loss breaches the stop. Positions are visited in symbol order
// (the snapshot is sorted), keeping output deterministic.
func stopLossScan(snap portfolio.Snapshot, cfg Config) ([]ValidatedTrade, map[string]bool) {
	var forced []ValidatedTrade
	overridden := make(map[string]bool)

	for _, pv := range snap.Positions {
		if pv.PLFraction > -cfg.StopLossPct {
			continue
		}
		forced = append(forced, ValidatedTrade{
			Trade: ProposedTrade{
				Symbol:  pv.Symbol,
				Action:  ActionSell,
				SellAll: true,
				Urgency: High,
				Thesis: fmt.Sprintf("stop-loss: position at %+.1f%% (threshold -%.1f%%)",
					pv.PLFraction*100, cfg.StopLossPct*100),
			},
			Origin:   ForcedStopLoss,
			Outcome:  Approved,
			Quantity: pv.Quantity,
			SellAll:  true,
			Reason:   ReasonStopLoss,
			Detail: fmt.Sprintf("unrealized P/L %+.1f%% breached stop-loss -%.1f%%",
				pv.PLFraction*100, cfg.StopLossPct*100),
		})
		overridden[pv.Symbol] = true
	}
	return forced, overridden
}

// drawdownScan forces a proportional exposure reduction when the decline from
// the running peak exceeds the configured maximum. Largest positions by
// market value are reduced first.
func drawdownScan(snap portfolio.Snapshot, cfg Config, overridden map[string]bool) ([]ValidatedTrade, string) {
	if snap.Peak <= 0 {
		return nil, ""
	}
	drawdown := (snap.Peak - snap.TotalValue) / snap.Peak
	if drawdown <= cfg.MaxDrawdownPct {
		return nil, ""
	}

	byValue := make([]portfolio.PositionView, len(snap.Positions))
	copy(byValue, snap.Positions)
	sort.SliceStable(byValue, func(i, j int) bool {
		if byValue[i].MarketValue != byValue[j].MarketValue {
			return byValue[i].MarketValue > byValue[j].MarketValue
		}
		return byValue[i].Symbol < byValue[j].Symbol
	})

	var forced []ValidatedTrade
	for _, pv := range byValue {
		if overridden[pv.Symbol] {
			continue // already fully sold by the stop-loss scan
		}
		qty := pv.Quantity * drawdownReduction
		if qty*pv.Price < MinFillUSD {
			continue
		}
		forced = append(forced, ValidatedTrade{
			Trade: ProposedTrade{
				Symbol:   pv.Symbol,
				Action:   ActionSell,
				Quantity: qty,
				Urgency:  High,
				Thesis: fmt.Sprintf("forced reduction: drawdown %.1f%% exceeds %.1f%%",
					drawdown*100, cfg.MaxDrawdownPct*100),
			},
			Origin:   ForcedDrawdown,
			Outcome:  Approved,
			Quantity: qty,
			Reason:   ReasonDrawdown,
			Detail: fmt.Sprintf("selling %.0f%% of position to cut exposure",
				drawdownReduction*100),
		})
		overridden[pv.Symbol] = true
	}

	warning := fmt.Sprintf("drawdown %.1f%% exceeds %.1f%% threshold: forcing %.0f%% exposure reduction",
		drawdown*100, cfg.MaxDrawdownPct*100, drawdownReduction*100)
	return forced, warning
}

// validateDiscretionary gates each proposal in priority order, then applies
// the trade-count cap. Priority is urgency descending, dollar size descending
// on ties, original order last, so the cap drops the lowest-urgency smallest
// trades first and the result is deterministic.
func validateDiscretionary(
	snap portfolio.Snapshot,
	proposed []ProposedTrade,
	quotes map[string]market.Quote,
	cfg Config,
	today time.Time,
	overridden map[string]bool,
	maxTrades int,
) (kept, rejected []ValidatedTrade) {
	order := make([]int, len(proposed))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ta, tb := proposed[order[a]], proposed[order[b]]
		if ta.Urgency != tb.Urgency {
			return ta.Urgency > tb.Urgency
		}
		return dollarSize(ta, snap, quotes) > dollarSize(tb, snap, quotes)
	})

	for _, i := range order {
		vt := validateOne(proposed[i], snap, quotes, cfg, today, overridden)
		switch {
		case vt.Outcome == Rejected:
			rejected = append(rejected, vt)
		case len(kept) >= maxTrades:
			vt.Outcome = Rejected
			vt.Reason = ReasonTradeCap
			vt.Detail = fmt.Sprintf("exceeds %d trades per cycle", maxTrades)
			vt.AmountUSD = 0
			vt.Quantity = 0
			rejected = append(rejected, vt)
		default:
			kept = append(kept, vt)
		}
	}
	return kept, rejected
}

// dollarSize estimates a proposal's notional for tie-breaking.
func dollarSize(t ProposedTrade, snap portfolio.Snapshot, quotes map[string]market.Quote) float64 {
	if t.Action == ActionBuy {
		return abs(t.AmountUSD)
	}
	pv, held := snap.Position(t.Symbol)
	if !held {
		return 0
	}
	if t.SellAll {
		return pv.MarketValue
	}
	price := pv.Price
	if q, ok := quotes[t.Symbol]; ok {
		price = q.Price
	}
	return abs(t.Quantity * price)
}

func validateOne(
	t ProposedTrade,
	snap portfolio.Snapshot,
	quotes map[string]market.Quote,
	cfg Config,
	today time.Time,
	overridden map[string]bool,
) ValidatedTrade {
	vt := ValidatedTrade{Trade: t, Origin: Discretionary, Outcome: Approved}

	if overridden[t.Symbol] {
		return reject(vt, ReasonSuperseded, "a forced sell replaced this proposal")
	}

	quote, ok := quotes[t.Symbol]
	if !ok || quote.Price <= 0 {
		return reject(vt, ReasonNoMarketData, "no price/volume data at this tick")
	}
	if cfg.MinPrice > 0 && quote.Price < cfg.MinPrice {
		return reject(vt, ReasonPriceFloor,
			fmt.Sprintf("price $%.2f below $%.2f minimum", quote.Price, cfg.MinPrice))
	}
	if cfg.MinLiquidityVolume > 0 && quote.AvgDollarVolume < cfg.MinLiquidityVolume {
		return reject(vt, ReasonLiquidity,
			fmt.Sprintf("avg daily volume $%.0f below $%.0f minimum",
				quote.AvgDollarVolume, cfg.MinLiquidityVolume))
	}

	switch t.Action {
	case ActionBuy:
		return validateBuy(vt, snap, cfg)
	case ActionSell:
		return validateSell(vt, snap, cfg, today)
	default:
		return reject(vt, ReasonInvalidAmount, fmt.Sprintf("unknown action %q", t.Action))
	}
}

// validateBuy clips the requested dollars through the position-size ceiling
// and the cash-reserve floor, in that order. A buy that cannot reach the
// minimum fill is rejected instead of shrunk to dust.
func validateBuy(vt ValidatedTrade, snap portfolio.Snapshot, cfg Config) ValidatedTrade {
	amount := vt.Trade.AmountUSD
	if amount <= 0 {
		return reject(vt, ReasonInvalidAmount, "buy amount must be positive")
	}

	// Position-size ceiling.
	var existing float64
	if pv, held := snap.Position(vt.Trade.Symbol); held {
		existing = pv.MarketValue
	}
	ceiling := snap.TotalValue * cfg.MaxPositionPct
	if existing+amount > ceiling {
		allowed := ceiling - existing
		if allowed < MinFillUSD {
			return reject(vt, ReasonPositionLimit,
				fmt.Sprintf("position $%.0f already at the %.0f%% cap of a $%.0f portfolio",
					existing, cfg.MaxPositionPct*100, snap.TotalValue))
		}
		vt.Outcome = Modified
		vt.Reason = ReasonPositionLimit
		vt.Detail = fmt.Sprintf("clipped $%.0f -> $%.0f to respect %.0f%% position cap",
			amount, allowed, cfg.MaxPositionPct*100)
		amount = allowed
	}

	// Cash-reserve floor.
	investable := snap.Cash - snap.TotalValue*cfg.MinCashPct
	if amount > investable {
		if investable <= 0 {
			return reject(vt, ReasonCashReserve,
				fmt.Sprintf("cash $%.2f at or below %.0f%% reserve", snap.Cash, cfg.MinCashPct*100))
		}
		vt.Outcome = Modified
		vt.Reason = ReasonCashReserve
		vt.Detail = fmt.Sprintf("clipped $%.0f -> $%.0f to respect %.0f%% cash reserve",
			amount, investable, cfg.MinCashPct*100)
		amount = investable
	}

	vt.AmountUSD = amount
	return vt
}

// validateSell applies the holding-period rule (discretionary sells only) and
// clips the quantity to the held amount.
func validateSell(vt ValidatedTrade, snap portfolio.Snapshot, cfg Config, today time.Time) ValidatedTrade {
	pv, held := snap.Position(vt.Trade.Symbol)
	if !held {
		return reject(vt, ReasonNoPosition, "no position to sell")
	}

	if cfg.MinHoldingDays > 0 && pv.HoldingDays < cfg.MinHoldingDays {
		return reject(vt, ReasonHoldingPeriod,
			fmt.Sprintf("held %d days, minimum is %d", pv.HoldingDays, cfg.MinHoldingDays))
	}

	if vt.Trade.SellAll {
		vt.Quantity = pv.Quantity
		vt.SellAll = true
		return vt
	}

	qty := vt.Trade.Quantity
	if qty <= 0 {
		return reject(vt, ReasonInvalidAmount, "sell quantity must be positive")
	}
	if qty > pv.Quantity {
		vt.Outcome = Modified
		vt.Reason = ReasonQuantityClip
		vt.Detail = fmt.Sprintf("clipped %.4f -> %.4f shares (held quantity)", qty, pv.Quantity)
		qty = pv.Quantity
	}
	vt.Quantity = qty
	return vt
}

// correlationPass annotates surviving buys whose symbols share a correlated
// group. Warnings never remove or modify a trade.
func correlationPass(kept []ValidatedTrade, cfg Config) []string {
	hitsByGroup := make(map[int][]int)
	for i, vt := range kept {
		if vt.Trade.Action != ActionBuy {
			continue
		}
		for _, gi := range cfg.groupsFor(vt.Trade.Symbol) {
			hitsByGroup[gi] = append(hitsByGroup[gi], i)
		}
	}

	var warnings []string
	for gi := range cfg.CorrelatedGroups {
		hits := hitsByGroup[gi]
		if len(hits) < 2 {
			continue
		}

		syms := make([]string, len(hits))
		for i, h := range hits {
			syms[i] = kept[h].Trade.Symbol
		}
		note := fmt.Sprintf("correlated buys in group %d: %s", gi+1, strings.Join(syms, ", "))
		warnings = append(warnings, note)
		for _, h := range hits {
			kept[h].Warnings = append(kept[h].Warnings, note)
		}
	}
	return warnings
}

func reject(vt ValidatedTrade, reason, detail string) ValidatedTrade {
	vt.Outcome = Rejected
	vt.Reason = reason
	vt.Detail = detail
	vt.AmountUSD = 0
	vt.Quantity = 0
	vt.SellAll = false
	return vt
}

func symbolsOf(trades []ValidatedTrade) []string {
	out := make([]string, len(trades))
	for i, vt := range trades {
		out[i] = vt.Trade.Symbol
	}
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
