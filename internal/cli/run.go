package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/daytrader/alert"
	"github.com/rustyeddy/daytrader/broker/bridge"
	"github.com/rustyeddy/daytrader/config"
	"github.com/rustyeddy/daytrader/engine"
	"github.com/rustyeddy/daytrader/journal"
	"github.com/rustyeddy/daytrader/metrics"
)

func newRunCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the position manager against the MT5 bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(opts.ConfigPath)
			if err != nil {
				return err
			}

			log, err := newLogger(opts.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			gw := bridge.New(cfg.BridgeURL, log)
			defer gw.Close()

			jrn, err := openJournal(cfg.Journal)
			if err != nil {
				return err
			}
			defer jrn.Close()

			watcher, err := buildWatcher(cfg.Alert, log)
			if err != nil {
				return err
			}

			if cfg.MetricsListen != "" {
				go func() {
					if merr := metrics.Serve(cfg.MetricsListen); merr != nil {
						log.Error("metrics server stopped", zap.Error(merr))
					}
				}()
			}

			err = engine.New(cfg, gw, log, jrn, watcher).Run(ctx)
			if err == context.Canceled {
				log.Info("interrupted, shutting down")
				return nil
			}
			return err
		},
	}
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "csv":
		return journal.NewCSV(jc.Path)
	case "sqlite":
		return journal.NewSQLite(jc.Path)
	default:
		return journal.Nop{}, nil
	}
}

func buildWatcher(ac config.AlertConfig, log *zap.Logger) (*alert.EquityWatcher, error) {
	if ac.EquityTarget <= 0 {
		return nil, nil
	}

	var al alert.Alerter = alert.Nop{}
	if ac.TelegramToken != "" {
		tg, err := alert.NewTelegram(ac.TelegramToken, ac.TelegramChat, log)
		if err != nil {
			return nil, err
		}
		al = tg
	}
	return &alert.EquityWatcher{Target: ac.EquityTarget, Alerter: al}, nil
}
