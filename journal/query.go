package journal

import (
	"time"
)

// DaySummary aggregates one calendar day of cycle rows.
type DaySummary struct {
	Day         time.Time
	Cycles      int
	FirstEquity float64
	LastEquity  float64
	MinProfit   float64
	MaxProfit   float64
	LastProfit  float64
}

// ListCyclesBetween returns cycle rows with time in [start, end).
func (j *SQLiteJournal) ListCyclesBetween(start, end time.Time) ([]CycleRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, symbol, total_positions, buy_count, sell_count,
		       buy_volume, sell_volume, buy_profit, sell_profit, total_profit,
		       equity, balance, margin_free, margin_free_pct, price, trend, hedge_active
		FROM cycles
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleRecord
	for rows.Next() {
		var r CycleRecord
		if err := rows.Scan(
			&r.RunID, &r.Time, &r.Symbol, &r.TotalPositions, &r.BuyCount, &r.SellCount,
			&r.BuyVolume, &r.SellVolume, &r.BuyProfit, &r.SellProfit, &r.TotalProfit,
			&r.Equity, &r.Balance, &r.MarginFree, &r.MarginFreePct, &r.Price, &r.Trend,
			&r.HedgeActive,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SummarizeDay aggregates the cycles recorded on the given calendar day
// in the day's location.
func (j *SQLiteJournal) SummarizeDay(day time.Time) (DaySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	recs, err := j.ListCyclesBetween(start, end)
	if err != nil {
		return DaySummary{}, err
	}

	sum := DaySummary{Day: start, Cycles: len(recs)}
	if len(recs) == 0 {
		return sum, nil
	}

	sum.FirstEquity = recs[0].Equity
	sum.LastEquity = recs[len(recs)-1].Equity
	sum.LastProfit = recs[len(recs)-1].TotalProfit
	sum.MinProfit = recs[0].TotalProfit
	sum.MaxProfit = recs[0].TotalProfit
	for _, r := range recs[1:] {
		if r.TotalProfit < sum.MinProfit {
			sum.MinProfit = r.TotalProfit
		}
		if r.TotalProfit > sum.MaxProfit {
			sum.MaxProfit = r.TotalProfit
		}
	}
	return sum, nil
}
