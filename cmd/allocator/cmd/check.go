package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/allocator/market"
	"github.com/rustyeddy/allocator/portfolio"
	"github.com/rustyeddy/allocator/risk"
)

// cycleFile is a hand-written validation scenario: portfolio state, quotes,
// and proposed trades, checked in one shot without touching any history.
type cycleFile struct {
	AsOf      string                  `yaml:"as_of"`
	Cash      float64                 `yaml:"cash"`
	Peak      float64                 `yaml:"peak"`
	Positions []cyclePosition         `yaml:"positions"`
	Quotes    map[string]market.Quote `yaml:"quotes"`
	Trades    []risk.ProposedTrade    `yaml:"trades"`
}

type cyclePosition struct {
	Symbol      string  `yaml:"symbol"`
	Quantity    float64 `yaml:"quantity"`
	AvgCost     float64 `yaml:"avg_cost"`
	Price       float64 `yaml:"price"`
	HoldingDays int     `yaml:"holding_days"`
}

var checkCmd = &cobra.Command{
	Use:   "check FILE",
	Short: "Validate a cycle file's trades against the rules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read cycle file: %w", err)
		}
		var cf cycleFile
		if err := yaml.Unmarshal(raw, &cf); err != nil {
			return fmt.Errorf("parse cycle file: %w", err)
		}

		asOf := time.Now().UTC()
		if cf.AsOf != "" {
			asOf, err = time.ParseInLocation("2006-01-02", cf.AsOf, time.UTC)
			if err != nil {
				return fmt.Errorf("bad as_of: %w", err)
			}
		}

		snap := cf.snapshot(asOf)
		validated, warnings, err := risk.Validate(snap, cf.Trades, cf.Quotes, cfg.Rules, asOf)
		if err != nil {
			return err
		}

		for _, w := range warnings {
			fmt.Printf("warning: %s\n", w)
		}
		for _, vt := range validated {
			fmt.Println(vt)
			if vt.Detail != "" {
				fmt.Printf("    %s\n", vt.Detail)
			}
		}
		return nil
	},
}

// snapshot rebuilds a marked-to-market view from the declared state.
func (cf cycleFile) snapshot(asOf time.Time) portfolio.Snapshot {
	views := make([]portfolio.PositionView, 0, len(cf.Positions))
	var invested float64
	for _, p := range cf.Positions {
		mv := p.Quantity * p.Price
		cost := p.Quantity * p.AvgCost
		v := portfolio.PositionView{
			Symbol:       p.Symbol,
			Quantity:     p.Quantity,
			AvgCost:      p.AvgCost,
			Price:        p.Price,
			MarketValue:  mv,
			UnrealizedPL: mv - cost,
			HoldingDays:  p.HoldingDays,
		}
		if cost > 0 {
			v.PLFraction = (mv - cost) / cost
		}
		views = append(views, v)
		invested += mv
	}

	total := cf.Cash + invested
	snap := portfolio.Snapshot{
		AsOf:       asOf,
		Cash:       cf.Cash,
		Invested:   invested,
		TotalValue: total,
		Peak:       cf.Peak,
		Positions:  views,
	}
	if total > 0 {
		snap.CashFraction = cf.Cash / total
		for i := range snap.Positions {
			snap.Positions[i].Weight = snap.Positions[i].MarketValue / total
		}
	} else {
		snap.CashFraction = 1
	}
	return snap
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
