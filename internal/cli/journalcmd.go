package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/daytrader/config"
	"github.com/rustyeddy/daytrader/journal"
)

func newJournalCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query the SQLite cycle journal",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "today",
		Short: "Summarize today's cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printDay(opts, time.Now())
		},
	})

	day := &cobra.Command{
		Use:   "day <YYYY-MM-DD>",
		Short: "Summarize one day's cycles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.ParseInLocation("2006-01-02", args[0], time.Local)
			if err != nil {
				return fmt.Errorf("bad day %q: %w", args[0], err)
			}
			return printDay(opts, d)
		},
	}
	cmd.AddCommand(day)

	return cmd
}

func printDay(opts *rootOpts, day time.Time) error {
	cfg, err := config.LoadFromFile(opts.ConfigPath)
	if err != nil {
		return err
	}
	if cfg.Journal.Type != "sqlite" {
		return fmt.Errorf("journal queries need journal.type=sqlite (got %q)", cfg.Journal.Type)
	}

	j, err := journal.NewSQLite(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	sum, err := j.SummarizeDay(day)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d cycles\n", sum.Day.Format("2006-01-02"), sum.Cycles)
	if sum.Cycles == 0 {
		return nil
	}
	fmt.Printf("  equity      %.2f -> %.2f\n", sum.FirstEquity, sum.LastEquity)
	fmt.Printf("  profit      min %.2f  max %.2f  last %.2f\n", sum.MinProfit, sum.MaxProfit, sum.LastProfit)
	return nil
}
