package backtest

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/allocator/risk"
)

// ScriptProposer replays a fixed trade plan keyed by week number. Weeks with
// no entry propose nothing. Useful for regression runs and for exercising
// the validation rules against known sequences.
type ScriptProposer struct {
	Weeks map[int][]risk.ProposedTrade `yaml:"weeks"`
}

// LoadScript reads a YAML trade plan:
//
//	weeks:
//	  1:
//	    - symbol: VTI
//	      action: BUY
//	      amount_usd: 2000
//	      urgency: 1
//	  4:
//	    - symbol: VTI
//	      action: SELL
//	      sell_all: true
func LoadScript(path string) (*ScriptProposer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	var sp ScriptProposer
	if err := yaml.Unmarshal(raw, &sp); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	return &sp, nil
}

func (s *ScriptProposer) Propose(_ context.Context, c Context) ([]risk.ProposedTrade, error) {
	return s.Weeks[c.Week], nil
}
