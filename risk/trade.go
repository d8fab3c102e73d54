package risk

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Action is the direction of a proposed trade.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Urgency ranks discretionary trades for processing order and for the
// per-cycle trade cap (higher is kept first).
type Urgency int

const (
	Low Urgency = iota
	Medium
	High
)

func (u Urgency) String() string {
	switch u {
	case High:
		return "HIGH"
	case Low:
		return "LOW"
	default:
		return "MEDIUM"
	}
}

// ParseUrgency maps a label to an Urgency; anything unrecognised is Medium,
// mirroring how upstream proposals are normalised.
func ParseUrgency(s string) Urgency {
	switch s {
	case "HIGH", "high", "High":
		return High
	case "LOW", "low", "Low":
		return Low
	default:
		return Medium
	}
}

// Urgency travels as a label (HIGH/MEDIUM/LOW) in scripts and journals.

func (u Urgency) MarshalYAML() (interface{}, error) { return u.String(), nil }

func (u *Urgency) UnmarshalYAML(value *yaml.Node) error {
	*u = ParseUrgency(value.Value)
	return nil
}

func (u Urgency) MarshalJSON() ([]byte, error) { return json.Marshal(u.String()) }

func (u *Urgency) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*u = ParseUrgency(s)
	return nil
}

// Origin distinguishes trades the engine synthesised itself from trades
// proposed upstream. Forced origins bypass the holding-period rule and
// override discretionary proposals on the same symbol.
type Origin int

const (
	Discretionary Origin = iota
	ForcedStopLoss
	ForcedDrawdown
)

func (o Origin) Forced() bool { return o != Discretionary }

func (o Origin) String() string {
	switch o {
	case ForcedStopLoss:
		return "FORCED_STOP_LOSS"
	case ForcedDrawdown:
		return "FORCED_DRAWDOWN"
	default:
		return "DISCRETIONARY"
	}
}

// Outcome is the engine's verdict on a trade.
type Outcome string

const (
	Approved Outcome = "APPROVED"
	Modified Outcome = "MODIFIED"
	Rejected Outcome = "REJECTED"
)

// Reason codes attached to ValidatedTrades. Rejections always carry one;
// forced trades carry the code of the rule that synthesised them.
const (
	ReasonPriceFloor    = "MIN_PRICE"
	ReasonLiquidity     = "MIN_LIQUIDITY"
	ReasonPositionLimit = "POSITION_LIMIT"
	ReasonCashReserve   = "CASH_RESERVE"
	ReasonHoldingPeriod = "HOLDING_PERIOD"
	ReasonTradeCap      = "TRADE_CAP"
	ReasonNoPosition    = "NO_POSITION"
	ReasonNoMarketData  = "NO_MARKET_DATA"
	ReasonInvalidAmount = "INVALID_AMOUNT"
	ReasonSuperseded    = "SUPERSEDED_BY_FORCED"
	ReasonQuantityClip  = "QUANTITY_CLIPPED"
	ReasonStopLoss      = "STOP_LOSS"
	ReasonDrawdown      = "DRAWDOWN_REDUCTION"
)

// ProposedTrade is a single trade as issued by the reasoning collaborator
// (or synthesised by the engine for forced sells). Buys are sized in dollars;
// sells in shares, or the whole position when SellAll is set.
type ProposedTrade struct {
	Symbol    string  `json:"symbol" yaml:"symbol"`
	Action    Action  `json:"action" yaml:"action"`
	AmountUSD float64 `json:"amount_usd,omitempty" yaml:"amount_usd,omitempty"`
	Quantity  float64 `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	SellAll   bool    `json:"sell_all,omitempty" yaml:"sell_all,omitempty"`
	Urgency   Urgency `json:"urgency" yaml:"urgency"`
	Thesis    string  `json:"thesis,omitempty" yaml:"thesis,omitempty"`

	// Optional exit hints carried through for the executor; the engine does
	// not act on them.
	StopLossPct   *float64 `json:"stop_loss_pct,omitempty" yaml:"stop_loss_pct,omitempty"`
	TakeProfitPct *float64 `json:"take_profit_pct,omitempty" yaml:"take_profit_pct,omitempty"`
	TimeStopDays  *int     `json:"time_stop_days,omitempty" yaml:"time_stop_days,omitempty"`
}

// ValidatedTrade wraps a proposed (or synthesised) trade with the engine's
// verdict and final sizing. AmountUSD holds the final buy dollars; Quantity
// and SellAll the final sell sizing.
type ValidatedTrade struct {
	Trade   ProposedTrade `json:"trade"`
	Origin  Origin        `json:"origin"`
	Outcome Outcome       `json:"outcome"`

	AmountUSD float64 `json:"amount_usd,omitempty"`
	Quantity  float64 `json:"quantity,omitempty"`
	SellAll   bool    `json:"sell_all,omitempty"`

	// Reason is a machine-readable code; Detail explains it for humans.
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`

	// Warnings are non-blocking annotations, e.g. correlated exposure.
	Warnings []string `json:"warnings,omitempty"`
}

func (v ValidatedTrade) String() string {
	return fmt.Sprintf("%s %s %s [%s/%s]",
		v.Outcome, v.Trade.Action, v.Trade.Symbol, v.Origin, v.Reason)
}
