package cmd

import (
	"context"
	"fmt"
	"time"

	"sgassist/cmd/sgassist/cmd/mgc"
	"sgassist/cmd/sgassist/globals"
	"sgassist/lib/configutil"
	"sgassist/lib/kvstore"
	"sgassist/lib/restyutil"
	"sgassist/lib/scrapers/steamgifts/core"
	"sgassist/lib/telemetry"

	"github.com/spf13/cobra"
)

const defaultBaseUrl = "https://www.steamgifts.com"

var configPath *string

var rootCmd = &cobra.Command{
	Use:           "sgassist",
	Short:         "sgassist scrolls through giveaway site listings and creates giveaways in bulk.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configutil.Load[globals.Config](*configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		telemetry.InitSlog(cfg.Debug)
		if cfg.BaseUrl == "" {
			cfg.BaseUrl = defaultBaseUrl
		}
		if cfg.Store.File == "" && cfg.Store.Url == "" {
			cfg.Store.File = ".sgassist/store.db"
		}

		var output restyutil.InstrumentOutput
		if cfg.DumpDir != "" {
			output, err = restyutil.NewFilesystemOutput(cfg.DumpDir)
			if err != nil {
				return err
			}
		}
		client, err := core.NewClient(core.ClientOptions{
			BaseUrl:     cfg.BaseUrl,
			SessionId:   cfg.SessionId,
			DebugOutput: output,
		})
		if err != nil {
			return err
		}
		store, err := kvstore.Open(cfg.Store)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		if cfg.Debug {
			telemetry.InstrumentPerfStats(cmd.Context(), time.Second*15)
		}

		cmd.SetContext(globals.Set(cmd.Context(), &globals.Value{
			Config: cfg,
			Client: client,
			Store:  store,
		}))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return globals.Get(cmd.Context()).Store.Close()
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The config file, a <name>.local<ext> next to it overrides it.")
	rootCmd.AddCommand(mgc.RootCmd)
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
