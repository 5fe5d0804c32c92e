package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/daytrader/config"
)

func newConfigCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and scaffold configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config to the --config path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if err := cfg.SaveToFile(opts.ConfigPath); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", opts.ConfigPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(opts.ConfigPath)
			if err != nil {
				return err
			}
			fmt.Printf("%s: ok (symbol=%s direction=%s magic=%d)\n",
				opts.ConfigPath, cfg.Symbol, cfg.Direction, cfg.Magic)
			return nil
		},
	})

	return cmd
}
