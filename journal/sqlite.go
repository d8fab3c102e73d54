package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordValidation(v ValidationRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO validations
		(id, run_id, tick, date, symbol, action, origin, outcome, reason, detail, amount_usd, quantity, thesis, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.RunID, v.Tick, v.Date, v.Symbol, v.Action, v.Origin,
		v.Outcome, v.Reason, v.Detail, v.AmountUSD, v.Quantity, v.Thesis, v.Warnings,
	)
	return err
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(id, run_id, tick, date, symbol, action, quantity, price, total, avg_cost, realized_pl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.RunID, t.Tick, t.Date, t.Symbol, t.Action,
		t.Quantity, t.Price, t.Total, t.AvgCost, t.RealizedPL,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquityRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, tick, date, equity, cash, drawdown)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Tick, e.Date, e.Equity, e.Cash, e.Drawdown,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

// GetValidation returns a single verdict by ID.
func (j *SQLite) GetValidation(id string) (ValidationRecord, error) {
	var rec ValidationRecord

	row := j.db.QueryRow(`
		SELECT id, run_id, tick, date, symbol, action, origin, outcome, reason, detail, amount_usd, quantity, thesis, warnings
		FROM validations
		WHERE id = ?`, id)

	err := row.Scan(
		&rec.ID,
		&rec.RunID,
		&rec.Tick,
		&rec.Date,
		&rec.Symbol,
		&rec.Action,
		&rec.Origin,
		&rec.Outcome,
		&rec.Reason,
		&rec.Detail,
		&rec.AmountUSD,
		&rec.Quantity,
		&rec.Thesis,
		&rec.Warnings,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return ValidationRecord{}, fmt.Errorf("validation %q not found", id)
		}
		return ValidationRecord{}, err
	}
	return rec, nil
}

// ListTradesByRun returns a run's executions in tick order.
func (j *SQLite) ListTradesByRun(runID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT id, run_id, tick, date, symbol, action, quantity, price, total, avg_cost, realized_pl
		FROM trades
		WHERE run_id = ?
		ORDER BY tick ASC, id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.Tick,
			&rec.Date,
			&rec.Symbol,
			&rec.Action,
			&rec.Quantity,
			&rec.Price,
			&rec.Total,
			&rec.AvgCost,
			&rec.RealizedPL,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquityByRun returns a run's equity curve in tick order.
func (j *SQLite) ListEquityByRun(runID string) ([]EquityRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, tick, date, equity, cash, drawdown
		FROM equity
		WHERE run_id = ?
		ORDER BY tick ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityRecord
	for rows.Next() {
		var rec EquityRecord
		if err := rows.Scan(
			&rec.RunID,
			&rec.Tick,
			&rec.Date,
			&rec.Equity,
			&rec.Cash,
			&rec.Drawdown,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListValidationsBetween returns verdicts dated within [start, end).
func (j *SQLite) ListValidationsBetween(start, end time.Time) ([]ValidationRecord, error) {
	rows, err := j.db.Query(`
		SELECT id, run_id, tick, date, symbol, action, origin, outcome, reason, detail, amount_usd, quantity, thesis, warnings
		FROM validations
		WHERE date >= ? AND date < ?
		ORDER BY date ASC, tick ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ValidationRecord
	for rows.Next() {
		var rec ValidationRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.Tick,
			&rec.Date,
			&rec.Symbol,
			&rec.Action,
			&rec.Origin,
			&rec.Outcome,
			&rec.Reason,
			&rec.Detail,
			&rec.AmountUSD,
			&rec.Quantity,
			&rec.Thesis,
			&rec.Warnings,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
