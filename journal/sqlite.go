package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordCycle(r CycleRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO cycles
		(run_id, time, symbol, total_positions, buy_count, sell_count,
		 buy_volume, sell_volume, buy_profit, sell_profit, total_profit,
		 equity, balance, margin_free, margin_free_pct, price, trend, hedge_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Time, r.Symbol, r.TotalPositions, r.BuyCount, r.SellCount,
		r.BuyVolume, r.SellVolume, r.BuyProfit, r.SellProfit, r.TotalProfit,
		r.Equity, r.Balance, r.MarginFree, r.MarginFreePct, r.Price, r.Trend,
		r.HedgeActive,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
