package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

var csvHeader = []string{
	"run_id", "time", "symbol",
	"total_positions", "buy_count", "sell_count",
	"buy_volume", "sell_volume",
	"buy_profit", "sell_profit", "total_profit",
	"equity", "balance", "margin_free", "margin_free_pct",
	"price", "trend", "hedge_active",
}

type CSVJournal struct {
	w *csv.Writer
	f *os.File
}

// NewCSV appends to path, writing the header only when the file is new.
func NewCSV(path string) (*CSVJournal, error) {
	fi, statErr := os.Stat(path)
	fresh := statErr != nil || fi.Size() == 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &CSVJournal{w: w, f: f}, nil
}

func (j *CSVJournal) RecordCycle(r CycleRecord) error {
	err := j.w.Write([]string{
		r.RunID,
		r.Time.Format(time.RFC3339),
		r.Symbol,
		strconv.Itoa(r.TotalPositions),
		strconv.Itoa(r.BuyCount),
		strconv.Itoa(r.SellCount),
		f(r.BuyVolume),
		f(r.SellVolume),
		f(r.BuyProfit),
		f(r.SellProfit),
		f(r.TotalProfit),
		f(r.Equity),
		f(r.Balance),
		f(r.MarginFree),
		f(r.MarginFreePct),
		f(r.Price),
		r.Trend,
		strconv.FormatBool(r.HedgeActive),
	})
	if err != nil {
		return err
	}

	j.w.Flush()
	return j.w.Error()
}

func (j *CSVJournal) Close() error {
	j.w.Flush()
	if err := j.w.Error(); err != nil {
		j.f.Close()
		return err
	}
	return j.f.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
