package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/allocator/backtest"
	"github.com/rustyeddy/allocator/journal"
)

var backtestFlags struct {
	start    string
	end      string
	interval time.Duration
	script   string
	dataDir  string
	dbPath   string
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay a scripted trade plan over historical bars",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		start, err := time.ParseInLocation("2006-01-02", backtestFlags.start, time.UTC)
		if err != nil {
			return fmt.Errorf("bad --start: %w", err)
		}
		end, err := time.ParseInLocation("2006-01-02", backtestFlags.end, time.UTC)
		if err != nil {
			return fmt.Errorf("bad --end: %w", err)
		}

		proposer, err := backtest.LoadScript(backtestFlags.script)
		if err != nil {
			return err
		}

		dataDir := cfg.Data.Dir
		if backtestFlags.dataDir != "" {
			dataDir = backtestFlags.dataDir
		}

		var j journal.Journal = journal.Nop{}
		dbPath := cfg.Journal.DBPath
		if backtestFlags.dbPath != "" {
			dbPath = backtestFlags.dbPath
		}
		if dbPath != "" {
			sj, err := journal.NewSQLite(dbPath)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer sj.Close()
			j = sj
		}

		r := backtest.NewRunner(backtest.CSVHistory{Dir: dataDir}, proposer, cfg.Rules)
		r.Journal = j
		r.Logger = log

		res, err := r.Run(cmd.Context(), backtest.Params{
			Start:        start,
			End:          end,
			TickInterval: backtestFlags.interval,
			StartingCash: cfg.Account.StartingCash,
			Benchmark:    cfg.Account.Benchmark,
			Watchlist:    cfg.Account.Watchlist,
		})
		if err != nil {
			return err
		}

		res.Print(os.Stdout)
		return nil
	},
}

func init() {
	backtestCmd.Flags().StringVar(&backtestFlags.start, "start", "", "first tick date (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&backtestFlags.end, "end", "", "last tick date (YYYY-MM-DD)")
	backtestCmd.Flags().DurationVar(&backtestFlags.interval, "interval", backtest.DefaultTickInterval, "tick interval")
	backtestCmd.Flags().StringVar(&backtestFlags.script, "script", "", "YAML trade plan keyed by week")
	backtestCmd.Flags().StringVar(&backtestFlags.dataDir, "data", "", "bar CSV directory (overrides config)")
	backtestCmd.Flags().StringVar(&backtestFlags.dbPath, "db", "", "SQLite journal path (overrides config)")
	_ = backtestCmd.MarkFlagRequired("start")
	_ = backtestCmd.MarkFlagRequired("end")
	_ = backtestCmd.MarkFlagRequired("script")

	rootCmd.AddCommand(backtestCmd)
}
