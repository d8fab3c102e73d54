package risk

import (
	"fmt"
	"strings"
)

// DefaultBootstrapCashThreshold is applied when the config leaves
// bootstrap_cash_threshold_pct unset: above 80% cash the per-cycle trade cap
// is doubled to deploy capital faster.
const DefaultBootstrapCashThreshold = 0.80

// Config holds the hard capital-protection rules for one account. All
// percent-like fields are fractions in [0,1]: 0.20 means 20%. Zero values
// for MinPrice and MinLiquidityVolume disable those gates.
type Config struct {
	// MaxPositionPct caps any single position's share of total value.
	MaxPositionPct float64 `json:"max_position_pct" yaml:"max_position_pct"`
	// MinCashPct is the cash reserve floor after a buy.
	MinCashPct float64 `json:"min_cash_pct" yaml:"min_cash_pct"`
	// StopLossPct forces a full sell once a position's unrealized loss
	// reaches this fraction of its cost basis.
	StopLossPct float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	// MaxDrawdownPct forces a 50% exposure reduction once the peak-to-current
	// decline in total value exceeds this fraction.
	MaxDrawdownPct float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	// MaxTradesPerCycle caps surviving discretionary trades per cycle.
	MaxTradesPerCycle int `json:"max_trades_per_cycle" yaml:"max_trades_per_cycle"`
	// MinHoldingDays blocks discretionary sells of young positions.
	MinHoldingDays int `json:"min_holding_days" yaml:"min_holding_days"`
	// MinLiquidityVolume is the 10-day average dollar volume floor.
	MinLiquidityVolume float64 `json:"min_liquidity_volume" yaml:"min_liquidity_volume"`
	// MinPrice rejects penny stocks.
	MinPrice float64 `json:"min_price" yaml:"min_price"`
	// BootstrapCashThreshold relaxes the trade cap while the account is
	// mostly uninvested. Defaults to DefaultBootstrapCashThreshold.
	BootstrapCashThreshold float64 `json:"bootstrap_cash_threshold_pct" yaml:"bootstrap_cash_threshold_pct"`
	// CorrelatedGroups are symbol sets whose simultaneous buys draw a
	// non-blocking warning.
	CorrelatedGroups [][]string `json:"correlated_symbol_groups" yaml:"correlated_symbol_groups"`
}

// ConfigError reports a missing or out-of-range rule field. It is fatal: the
// engine refuses to evaluate any trade under a malformed config.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("risk config: %s %s", e.Field, e.Reason)
}

// Validate checks that every required numeric field is present and sane.
func (c Config) Validate() error {
	switch {
	case c.MaxPositionPct <= 0 || c.MaxPositionPct > 1:
		return &ConfigError{"max_position_pct", "must be in (0,1]"}
	case c.MinCashPct < 0 || c.MinCashPct >= 1:
		return &ConfigError{"min_cash_pct", "must be in [0,1)"}
	case c.StopLossPct <= 0 || c.StopLossPct >= 1:
		return &ConfigError{"stop_loss_pct", "must be in (0,1)"}
	case c.MaxDrawdownPct <= 0 || c.MaxDrawdownPct >= 1:
		return &ConfigError{"max_drawdown_pct", "must be in (0,1)"}
	case c.MaxTradesPerCycle <= 0:
		return &ConfigError{"max_trades_per_cycle", "must be positive"}
	case c.MinHoldingDays < 0:
		return &ConfigError{"min_holding_days", "must not be negative"}
	case c.MinLiquidityVolume < 0:
		return &ConfigError{"min_liquidity_volume", "must not be negative"}
	case c.MinPrice < 0:
		return &ConfigError{"min_price", "must not be negative"}
	case c.BootstrapCashThreshold < 0 || c.BootstrapCashThreshold >= 1:
		return &ConfigError{"bootstrap_cash_threshold_pct", "must be in [0,1)"}
	}
	return nil
}

// withDefaults fills optional fields. Called by the engine on every
// invocation so a zero threshold never silently disables bootstrap mode.
func (c Config) withDefaults() Config {
	if c.BootstrapCashThreshold == 0 {
		c.BootstrapCashThreshold = DefaultBootstrapCashThreshold
	}
	return c
}

// groupsFor returns the indexes of every correlated group containing symbol.
func (c Config) groupsFor(symbol string) []int {
	symbol = strings.ToUpper(symbol)
	var out []int
	for i, group := range c.CorrelatedGroups {
		for _, member := range group {
			if strings.ToUpper(member) == symbol {
				out = append(out, i)
				break
			}
		}
	}
	return out
}
