package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigValidateRanges(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"position pct zero", func(c *Config) { c.MaxPositionPct = 0 }, "max_position_pct"},
		{"position pct over one", func(c *Config) { c.MaxPositionPct = 1.5 }, "max_position_pct"},
		{"cash pct negative", func(c *Config) { c.MinCashPct = -0.1 }, "min_cash_pct"},
		{"stop loss zero", func(c *Config) { c.StopLossPct = 0 }, "stop_loss_pct"},
		{"drawdown one", func(c *Config) { c.MaxDrawdownPct = 1 }, "max_drawdown_pct"},
		{"trade cap zero", func(c *Config) { c.MaxTradesPerCycle = 0 }, "max_trades_per_cycle"},
		{"holding days negative", func(c *Config) { c.MinHoldingDays = -1 }, "min_holding_days"},
		{"min price negative", func(c *Config) { c.MinPrice = -1 }, "min_price"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tc.field, cerr.Field)
		})
	}

	assert.NoError(t, testConfig().Validate())
}

func TestConfigDefaultsBootstrapThreshold(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.BootstrapCashThreshold = 0
	assert.InDelta(t, DefaultBootstrapCashThreshold, cfg.withDefaults().BootstrapCashThreshold, 1e-9)

	cfg.BootstrapCashThreshold = 0.6
	assert.InDelta(t, 0.6, cfg.withDefaults().BootstrapCashThreshold, 1e-9)
}

func TestConfigGroupsForIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	cfg := Config{CorrelatedGroups: [][]string{
		{"VTI", "VOO"},
		{"nvda", "amd"},
		{"VTI", "SPY"},
	}}

	assert.Equal(t, []int{0, 2}, cfg.groupsFor("vti"))
	assert.Equal(t, []int{1}, cfg.groupsFor("NVDA"))
	assert.Empty(t, cfg.groupsFor("TSLA"))
}

func TestConfigUnmarshalsFromYAML(t *testing.T) {
	t.Parallel()

	raw := `
max_position_pct: 0.20
min_cash_pct: 0.10
stop_loss_pct: 0.12
max_drawdown_pct: 0.20
max_trades_per_cycle: 5
min_holding_days: 7
min_liquidity_volume: 1000000
min_price: 5.0
correlated_symbol_groups:
  - [VTI, VOO, SPY]
  - [NVDA, AMD]
`
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))
	require.NoError(t, cfg.Validate())

	assert.InDelta(t, 0.20, cfg.MaxPositionPct, 1e-9)
	assert.Equal(t, 5, cfg.MaxTradesPerCycle)
	require.Len(t, cfg.CorrelatedGroups, 2)
	assert.Equal(t, []string{"VTI", "VOO", "SPY"}, cfg.CorrelatedGroups[0])
}
